package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vitalsync/healthimport/internal/config"
	"github.com/vitalsync/healthimport/internal/db"
)

var (
	// Log flags override the corresponding environment configuration.
	logFormat string
	logLevel  string
	logOutput string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	appConfig  *config.Config
	dbConn     *sql.DB
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "healthimport",
	Short: "Ingest uploaded health export archives into normalized metric rows.",
	Long: `healthimport is the ingestion worker for uploaded health export archives.

It polls the shared import queue, claims one pending item at a time with a
conditional status update, streams the archive's export document without
materializing it in memory, aggregates sleep and paired blood-pressure
readings, and persists normalized metric values idempotently.

The primary command is 'worker', which runs the claim loop indefinitely.
Other commands process a single item, dry-run a local archive, or show
queue and metric state.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Optional .env for local development; absence is not an error.
		_ = godotenv.Load()

		var err error
		appConfig, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if logLevel != "" {
			appConfig.Logging.Level = logLevel
		}
		if logFormat != "" {
			appConfig.Logging.Format = logFormat
		}
		if logOutput != "" {
			appConfig.Logging.Output = logOutput
		}

		rootLogger, err = buildLogger(appConfig.Logging)
		if err != nil {
			return err
		}
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Configuration loaded.",
			slog.String("log_level", appConfig.Logging.Level),
			slog.Duration("poll_interval", appConfig.Worker.PollInterval),
			slog.Int("batch_size", appConfig.Worker.BatchSize),
		)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if dbConn != nil {
			rootLogger.Debug("Closing database connection.")
			if err := dbConn.Close(); err != nil {
				rootLogger.Error("Failed to close database connection cleanly.", "error", err)
			}
		}
		return nil
	},
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var logWriter io.Writer = os.Stderr
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
	case "stdout":
		logWriter = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logWriter = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(logWriter, opts)
	} else {
		handler = slog.NewTextHandler(logWriter, opts)
	}
	return slog.New(handler), nil
}

// openDB connects to the backing store on first use. Commands that work on
// local files only (inspect) never pay the connection cost.
func openDB(ctx context.Context) (*sql.DB, error) {
	if dbConn != nil {
		return dbConn, nil
	}
	if err := appConfig.Validate(); err != nil {
		return nil, err
	}

	conn, err := db.Open(ctx, appConfig.Database)
	if err != nil {
		return nil, err
	}
	if appConfig.Database.AutoMigrate {
		if err := db.InitializeSchema(ctx, conn); err != nil {
			conn.Close()
			return nil, err
		}
		rootLogger.Info("Database schema ensured.")
	}
	dbConn = conn
	return dbConn, nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed.", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.3.0"
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getConfig() *config.Config {
	return appConfig
}
