package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNothingClaimed indicates the queue held no claimable item, either
// because it was empty or because another instance won the claim race.
var ErrNothingClaimed = errors.New("no import claimed")

// Import is one row of the health_imports queue table.
type Import struct {
	ID                  string
	UserID              string
	StoragePath         string
	SizeBytes           int64
	Status              string
	ErrorMessage        sql.NullString
	UploadedAt          time.Time
	ProcessingStartedAt sql.NullTime
	ProcessedAt         sql.NullTime
	FailedAt            sql.NullTime
}

const importColumns = `id, user_id, storage_path, size_bytes, status, error_message,
       uploaded_at, processing_started_at, processed_at, failed_at`

func scanImport(row interface{ Scan(...any) error }) (*Import, error) {
	var imp Import
	err := row.Scan(
		&imp.ID, &imp.UserID, &imp.StoragePath, &imp.SizeBytes, &imp.Status,
		&imp.ErrorMessage, &imp.UploadedAt, &imp.ProcessingStartedAt,
		&imp.ProcessedAt, &imp.FailedAt,
	)
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// GetImport fetches a single import row by identifier.
func GetImport(ctx context.Context, conn *sql.DB, id string) (*Import, error) {
	query := `SELECT ` + importColumns + ` FROM health_imports WHERE id = $1`
	imp, err := scanImport(conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("import %s not found", id)
		}
		return nil, fmt.Errorf("query import %s: %w", id, err)
	}
	return imp, nil
}

// ClaimNextImport selects the oldest uploaded item and attempts to claim it
// with a conditional update guarded by status = 'uploaded'. If the update
// affects zero rows another instance won the race and ErrNothingClaimed is
// returned; the caller simply polls again. The compare-and-swap on the row's
// prior status is the only cross-instance coordination.
func ClaimNextImport(ctx context.Context, conn *sql.DB) (*Import, error) {
	selectQuery := `
        SELECT ` + importColumns + `
        FROM health_imports
        WHERE status = $1
        ORDER BY uploaded_at ASC
        LIMIT 1`
	imp, err := scanImport(conn.QueryRowContext(ctx, selectQuery, StatusUploaded))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNothingClaimed
		}
		return nil, fmt.Errorf("select next uploaded import: %w", err)
	}

	claimed, err := ClaimImport(ctx, conn, imp.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrNothingClaimed
	}
	imp.Status = StatusProcessing
	return imp, nil
}

// ClaimImport performs the conditional uploaded -> processing transition for
// a specific item. Returns false when the guarded update affected zero rows,
// meaning the item was already claimed (or is not in uploaded state).
func ClaimImport(ctx context.Context, conn *sql.DB, id string) (bool, error) {
	query := `
        UPDATE health_imports
        SET status = $1, processing_started_at = $2
        WHERE id = $3 AND status = $4`
	res, err := conn.ExecContext(ctx, query, StatusProcessing, time.Now().UTC(), id, StatusUploaded)
	if err != nil {
		return false, fmt.Errorf("claim import %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim import %s rows affected: %w", id, err)
	}
	return affected == 1, nil
}

// MarkImportCompleted records the terminal completed status.
func MarkImportCompleted(ctx context.Context, conn *sql.DB, id string) error {
	query := `
        UPDATE health_imports
        SET status = $1, processed_at = $2, error_message = NULL
        WHERE id = $3`
	if _, err := conn.ExecContext(ctx, query, StatusCompleted, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark import %s completed: %w", id, err)
	}
	return nil
}

// MarkImportFailed records the terminal failed status with a truncated error
// message. Failed items are never requeued automatically; retry only happens
// through a fresh upload.
func MarkImportFailed(ctx context.Context, conn *sql.DB, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > ErrorMessageLimit {
		msg = msg[:ErrorMessageLimit]
	}
	query := `
        UPDATE health_imports
        SET status = $1, failed_at = $2, error_message = $3
        WHERE id = $4`
	if _, err := conn.ExecContext(ctx, query, StatusFailed, time.Now().UTC(), msg, id); err != nil {
		return fmt.Errorf("mark import %s failed: %w", id, err)
	}
	return nil
}

// ListImports returns the most recent queue rows, optionally filtered by
// status, newest first. Used by the state and watch commands.
func ListImports(ctx context.Context, conn *sql.DB, statusFilter string, limit int) ([]Import, error) {
	query := `SELECT ` + importColumns + ` FROM health_imports`
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE status = $1`
		args = append(args, statusFilter)
	}
	query += fmt.Sprintf(` ORDER BY uploaded_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import row: %w", err)
		}
		imports = append(imports, *imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import rows: %w", err)
	}
	return imports, nil
}
