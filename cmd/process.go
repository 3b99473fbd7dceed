package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitalsync/healthimport/internal/importer"
	"github.com/vitalsync/healthimport/internal/notifier"
	"github.com/vitalsync/healthimport/internal/storage"
	"github.com/vitalsync/healthimport/internal/writer"
)

// processCmd claims and processes one specific import item.
var processCmd = &cobra.Command{
	Use:   "process <import-id>",
	Short: "Claim and process a single import item by identifier",
	Long: `Operator tool: runs the ingestion pipeline for one specific queue item.
The same conditional-claim protocol as the worker loop applies, so this is
safe to run while workers are active: whichever side claims first wins and
the other observes zero affected rows.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()
		if err := cfg.ValidateWorker(); err != nil {
			return err
		}
		ctx := cmd.Context()

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

		pipeline := &importer.Pipeline{
			Conn:      conn,
			Fetcher:   store,
			Catalog:   catalog,
			Notifier:  notifier.New(cfg.Scorecard),
			BatchSize: cfg.Worker.BatchSize,
		}
		return pipeline.RunOne(ctx, logger, args[0])
	},
}
