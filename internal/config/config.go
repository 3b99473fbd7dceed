package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// Default number of metric rows per insert batch.
	DefaultBatchSize = 500

	// Default interval between queue polls that find no work.
	DefaultPollInterval = 15 * time.Second
)

// Config holds all settings read once at process start.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Scorecard ScorecardConfig `mapstructure:"scorecard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxOpen     int    `mapstructure:"max_open_conns"`
	MaxIdle     int    `mapstructure:"max_idle_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type StorageConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // optional, for localstack-style setups
}

type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	ScratchDir   string        `mapstructure:"scratch_dir"`
}

type ScorecardConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Secret  string `mapstructure:"secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from the environment (HEALTHIMPORT_ prefix) with
// sane defaults. Credentials for object storage come from the standard AWS
// environment/credential chain, not from here.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("healthimport")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("worker.poll_interval", DefaultPollInterval)
	v.SetDefault("worker.batch_size", DefaultBatchSize)
	v.SetDefault("worker.scratch_dir", "")
	v.SetDefault("scorecard.base_url", "")
	v.SetDefault("scorecard.secret", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	// Environment variables use underscores: HEALTHIMPORT_DATABASE_DSN etc.
	for _, key := range []string{
		"database.dsn", "database.max_open_conns", "database.max_idle_conns", "database.auto_migrate",
		"storage.bucket", "storage.region", "storage.endpoint",
		"worker.poll_interval", "worker.batch_size", "worker.scratch_dir",
		"scorecard.base_url", "scorecard.secret",
		"logging.level", "logging.format", "logging.output",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Worker.BatchSize <= 0 {
		cfg.Worker.BatchSize = DefaultBatchSize
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = DefaultPollInterval
	}
	return &cfg, nil
}

// Validate checks the settings a database-backed command cannot run without.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required (HEALTHIMPORT_DATABASE_DSN)")
	}
	return nil
}

// ValidateWorker checks the additional settings the worker loop needs.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required (HEALTHIMPORT_STORAGE_BUCKET)")
	}
	return nil
}
