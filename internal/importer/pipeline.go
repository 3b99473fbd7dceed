// Package importer wires the ingestion stages together: claim an import,
// fetch its archive, locate and stream the export document, aggregate the
// buffered lanes, persist metric values, and notify the scorecard service.
// Data flows strictly forward; no stage reaches back into an earlier one.
package importer

import (
	"archive/zip"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/vitalsync/healthimport/internal/aggregate"
	"github.com/vitalsync/healthimport/internal/archive"
	"github.com/vitalsync/healthimport/internal/db"
	"github.com/vitalsync/healthimport/internal/extractor"
	"github.com/vitalsync/healthimport/internal/metric"
	"github.com/vitalsync/healthimport/internal/writer"
)

// ArchiveFetcher retrieves an uploaded archive into a local scratch file.
type ArchiveFetcher interface {
	Download(ctx context.Context, logger *slog.Logger, storagePath, importID string) (string, error)
}

// Notifier signals downstream recomputation after a successful write.
type Notifier interface {
	Notify(ctx context.Context, logger *slog.Logger, userID string) error
}

// Pipeline processes one claimed import at a time. The catalog is read-only
// after load and safe to share; everything else is per-item.
type Pipeline struct {
	Conn      *sql.DB
	Fetcher   ArchiveFetcher
	Catalog   *writer.Catalog
	Notifier  Notifier
	BatchSize int
}

// ProcessImport runs the full pipeline for an already-claimed item. The
// scratch file is removed unconditionally, success or failure. Any returned
// error is fatal for this item; the caller records the failed status.
func (p *Pipeline) ProcessImport(ctx context.Context, logger *slog.Logger, imp *db.Import) (writer.Counts, error) {
	var counts writer.Counts

	scratchPath, err := p.Fetcher.Download(ctx, logger, imp.StoragePath, imp.ID)
	if err != nil {
		return counts, fmt.Errorf("retrieve archive: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(scratchPath); rmErr != nil {
			logger.Warn("Failed to remove scratch file.", "path", scratchPath, "error", rmErr)
		}
	}()

	rows, err := p.extractRows(ctx, logger, scratchPath)
	if err != nil {
		return counts, err
	}

	counts, writeErr := writer.Write(ctx, p.Conn, logger, p.Catalog, imp.ID, imp.UserID, rows, p.BatchSize)
	if writeErr != nil {
		// Partial progress is already durable; a fresh upload retries the rest.
		return counts, fmt.Errorf("persist metric values (inserted=%d failed=%d): %w",
			counts.Inserted, counts.Failed, writeErr)
	}

	if p.Notifier != nil {
		if err := p.Notifier.Notify(ctx, logger, imp.UserID); err != nil {
			logger.Warn("Scorecard notification failed; import remains completed.", "error", err)
		}
	}
	return counts, nil
}

// extractRows opens the container, streams the export document once, and
// runs both aggregation algorithms over the buffered lanes.
func (p *Pipeline) extractRows(ctx context.Context, logger *slog.Logger, archivePath string) ([]metric.Row, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive container %s: %w", archivePath, err)
	}
	defer zr.Close()

	exportFile, err := archive.LocateExportFile(logger, &zr.Reader)
	if err != nil {
		return nil, err
	}

	rc, err := exportFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open export entry %s: %w", exportFile.Name, err)
	}
	defer rc.Close()

	result, err := extractor.Run(ctx, logger, rc)
	if err != nil {
		return nil, fmt.Errorf("extract records: %w", err)
	}
	result.Stats.Log(logger)

	rows := result.Direct
	rows = append(rows, aggregate.DayBuckets(logger, result.Intervals)...)
	rows = append(rows, aggregate.PairReadings(logger, result.Paired)...)
	return rows, nil
}
