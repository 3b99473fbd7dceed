package importer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vitalsync/healthimport/internal/db"
)

// RunLoop polls the import queue indefinitely. Any number of worker
// processes may run this loop against the same queue: mutual exclusion over
// a single item comes entirely from the conditional-update claim, with no
// lock service. The loop exits only when the context is cancelled; an item
// already claimed runs to completion first.
func (p *Pipeline) RunLoop(ctx context.Context, logger *slog.Logger, pollInterval time.Duration) error {
	logger.Info("Import worker loop started.", slog.Duration("poll_interval", pollInterval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Import worker loop stopping.", "error", ctx.Err())
			return ctx.Err()
		default:
		}

		imp, err := db.ClaimNextImport(ctx, p.Conn)
		if err != nil {
			if errors.Is(err, db.ErrNothingClaimed) {
				// Empty queue or lost race; either way, poll again later.
				sleepCtx(ctx, pollInterval)
				continue
			}
			// Transient store error: abandon this cycle, retry next poll.
			// The guarded update leaves no partial state behind.
			logger.Error("Claim attempt failed, retrying next poll.", "error", err)
			sleepCtx(ctx, pollInterval)
			continue
		}

		p.runClaimed(ctx, logger, imp)
	}
}

// RunOne claims a specific import by identifier and processes it. Used by
// the operator process command; the same conditional-claim protocol applies,
// so a concurrently running worker cannot double-process the item.
func (p *Pipeline) RunOne(ctx context.Context, logger *slog.Logger, importID string) error {
	imp, err := db.GetImport(ctx, p.Conn, importID)
	if err != nil {
		return err
	}
	claimed, err := db.ClaimImport(ctx, p.Conn, imp.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return errors.Join(db.ErrNothingClaimed,
			errors.New("import is not in uploaded state or was claimed by another worker"))
	}
	p.runClaimed(ctx, logger, imp)
	return nil
}

// runClaimed executes the pipeline for an exclusively owned item and records
// its terminal status.
func (p *Pipeline) runClaimed(ctx context.Context, logger *slog.Logger, imp *db.Import) {
	l := logger.With(
		slog.String("import_id", imp.ID),
		slog.String("user_id", imp.UserID),
		slog.String("storage_path", imp.StoragePath),
	)
	l.Info("Claimed import, starting pipeline.", slog.Int64("size_bytes", imp.SizeBytes))
	started := time.Now()

	counts, err := p.ProcessImport(ctx, l, imp)
	if err != nil {
		l.Error("Import failed.", "error", err, slog.Duration("duration", time.Since(started)))
		if markErr := db.MarkImportFailed(ctx, p.Conn, imp.ID, err); markErr != nil {
			l.Error("Failed to record failed status.", "error", markErr)
		}
		return
	}

	if err := db.MarkImportCompleted(ctx, p.Conn, imp.ID); err != nil {
		l.Error("Failed to record completed status.", "error", err)
		return
	}
	l.Info("Import completed.",
		slog.Int64("inserted", counts.Inserted),
		slog.Int64("skipped_duplicate", counts.Skipped),
		slog.Int64("dropped_unknown_code", counts.DroppedCodes),
		slog.Duration("duration", time.Since(started)),
	)
}

// sleepCtx waits for d or until the context is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
