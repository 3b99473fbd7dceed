package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitalsync/healthimport/internal/importer"
	"github.com/vitalsync/healthimport/internal/notifier"
	"github.com/vitalsync/healthimport/internal/storage"
	"github.com/vitalsync/healthimport/internal/writer"
)

// workerCmd runs the claim-scheduler loop indefinitely.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the import claim loop until interrupted",
	Long: `Polls the shared import queue indefinitely. Each cycle claims at most one
uploaded item via a conditional status update, runs the full ingestion
pipeline on it, and records the terminal status. Multiple worker processes
may run concurrently against the same queue; the conditional claim guarantees
each item is processed by exactly one of them.

Failed items are never requeued automatically; a retry requires a fresh
upload. SIGINT/SIGTERM stop the loop after the in-flight item finishes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()
		if err := cfg.ValidateWorker(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		conn, err := openDB(ctx)
		if err != nil {
			return err
		}

		store, err := storage.New(ctx, cfg.Storage, cfg.Worker.ScratchDir)
		if err != nil {
			return fmt.Errorf("init object storage client: %w", err)
		}

		catalog, err := writer.LoadCatalog(ctx, conn)
		if err != nil {
			return err
		}
		logger.Info("Metric catalog loaded.", "codes", catalog.Len())

		pipeline := &importer.Pipeline{
			Conn:      conn,
			Fetcher:   store,
			Catalog:   catalog,
			Notifier:  notifier.New(cfg.Scorecard),
			BatchSize: cfg.Worker.BatchSize,
		}

		err = pipeline.RunLoop(ctx, logger, cfg.Worker.PollInterval)
		if errors.Is(err, context.Canceled) {
			logger.Info("Worker stopped.")
			return nil
		}
		return err
	},
}
