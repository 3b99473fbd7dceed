// Package writer converts metric rows into durable values exactly once per
// (import, metric, timestamp) tuple. Idempotency lives in the store's unique
// constraint, not in application-side deduplication.
package writer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vitalsync/healthimport/internal/db"
	"github.com/vitalsync/healthimport/internal/metric"
)

// Catalog is the metric code to identifier lookup, loaded once per process
// lifetime and read-only afterwards. It is safe to share across concurrent
// claims and is passed in explicitly rather than held as a singleton.
type Catalog struct {
	mu    sync.RWMutex
	byCod map[string]int64
}

// LoadCatalog reads the definitions table into memory.
func LoadCatalog(ctx context.Context, conn *sql.DB) (*Catalog, error) {
	defs, err := db.LoadMetricDefinitions(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("load metric catalog: %w", err)
	}
	c := &Catalog{byCod: make(map[string]int64, len(defs))}
	for _, d := range defs {
		c.byCod[d.Code] = d.ID
	}
	return c, nil
}

// Resolve returns the internal identifier for a code, if known.
func (c *Catalog) Resolve(code string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byCod[code]
	return id, ok
}

// Len reports the number of known codes.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byCod)
}

// Counts tallies the outcome of one write pass.
type Counts struct {
	Inserted     int64
	Skipped      int64 // duplicate (import, metric, timestamp) tuples
	DroppedCodes int64 // rows whose code has no known identifier
	Failed       int64 // rows in batches that errored at the store
}

// Write resolves, batches, and conditionally inserts rows for one import.
// Unknown codes are dropped and counted, not errored. A batch-level store
// error is recorded and the remaining batches continue, preserving partial
// progress; the accumulated error is returned alongside the counts.
func Write(ctx context.Context, conn *sql.DB, logger *slog.Logger, catalog *Catalog, importID, userID string, rows []metric.Row, batchSize int) (Counts, error) {
	var counts Counts
	if batchSize <= 0 {
		batchSize = 1
	}

	resolved := make([]db.ResolvedRow, 0, len(rows))
	for _, row := range rows {
		id, ok := catalog.Resolve(row.Code)
		if !ok {
			counts.DroppedCodes++
			continue
		}
		resolved = append(resolved, db.ResolvedRow{MetricID: id, Row: row})
	}
	if counts.DroppedCodes > 0 {
		logger.Info("Dropped rows with unknown metric codes.",
			slog.Int64("dropped", counts.DroppedCodes))
	}

	var batchErrs error
	for start := 0; start < len(resolved); start += batchSize {
		end := start + batchSize
		if end > len(resolved) {
			end = len(resolved)
		}
		batch := resolved[start:end]

		inserted, err := db.InsertMetricValues(ctx, conn, importID, userID, batch)
		if err != nil {
			counts.Failed += int64(len(batch))
			logger.Error("Metric value batch failed, continuing with next batch.",
				slog.Int("batch_size", len(batch)), "error", err)
			batchErrs = errors.Join(batchErrs, err)
			continue
		}
		counts.Inserted += inserted
		counts.Skipped += int64(len(batch)) - inserted
	}

	logger.Info("Persistence pass finished.",
		slog.Int64("inserted", counts.Inserted),
		slog.Int64("skipped_duplicate", counts.Skipped),
		slog.Int64("dropped_unknown_code", counts.DroppedCodes),
		slog.Int64("failed", counts.Failed),
	)
	return counts, batchErrs
}
