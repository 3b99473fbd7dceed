// Package db owns all SQL against the backing store: the import queue table,
// the metric definitions lookup, and the metric values insert path.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Driver

	"github.com/vitalsync/healthimport/internal/config"
)

// Import item lifecycle statuses. Transitions form a strict path:
// uploaded -> processing -> {completed | failed}.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrorMessageLimit caps the error text recorded on a failed import row.
const ErrorMessageLimit = 500

const schemaSQL = `
CREATE TABLE IF NOT EXISTS health_imports (
    id                    UUID PRIMARY KEY,
    user_id               UUID NOT NULL,
    storage_path          TEXT NOT NULL,
    size_bytes            BIGINT NOT NULL DEFAULT 0,
    status                TEXT NOT NULL DEFAULT 'uploaded',
    error_message         VARCHAR(500),
    uploaded_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    processing_started_at TIMESTAMPTZ,
    processed_at          TIMESTAMPTZ,
    failed_at             TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_health_imports_status_uploaded ON health_imports (status, uploaded_at);

CREATE TABLE IF NOT EXISTS metric_definitions (
    id           BIGSERIAL PRIMARY KEY,
    code         TEXT NOT NULL UNIQUE,
    display_name TEXT,
    unit         TEXT
);

CREATE TABLE IF NOT EXISTS metric_values (
    id          BIGSERIAL PRIMARY KEY,
    user_id     UUID NOT NULL,
    metric_id   BIGINT NOT NULL REFERENCES metric_definitions (id),
    import_id   UUID NOT NULL REFERENCES health_imports (id) ON DELETE CASCADE,
    value       DOUBLE PRECISION NOT NULL,
    unit        TEXT,
    measured_at TIMESTAMPTZ NOT NULL,
    source      TEXT,
    UNIQUE (import_id, metric_id, measured_at)
);
CREATE INDEX IF NOT EXISTS idx_metric_values_user_metric ON metric_values (user_id, metric_id, measured_at);
`

// Open connects to the backing store and verifies the connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpen)
	conn.SetMaxIdleConns(cfg.MaxIdle)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return conn, nil
}

// InitializeSchema creates the tables if they do not exist. Only called when
// auto-migrate is enabled; in managed environments the collaborator surface
// administers the schema.
func InitializeSchema(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
