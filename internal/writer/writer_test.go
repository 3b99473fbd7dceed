package writer

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/healthimport/internal/metric"
)

const testSchema = `
CREATE TABLE health_imports (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    storage_path TEXT NOT NULL,
    size_bytes  INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'uploaded',
    error_message TEXT,
    uploaded_at TIMESTAMP NOT NULL,
    processing_started_at TIMESTAMP,
    processed_at TIMESTAMP,
    failed_at   TIMESTAMP
);

CREATE TABLE metric_definitions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    code         TEXT NOT NULL UNIQUE,
    display_name TEXT,
    unit         TEXT
);

CREATE TABLE metric_values (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     TEXT NOT NULL,
    metric_id   INTEGER NOT NULL,
    import_id   TEXT NOT NULL,
    value       REAL NOT NULL,
    unit        TEXT,
    measured_at TIMESTAMP NOT NULL,
    source      TEXT,
    UNIQUE (import_id, metric_id, measured_at)
);
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T, codes ...string) (*sql.DB, string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "writer_test.db")
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(testSchema)
	require.NoError(t, err)

	for _, code := range codes {
		_, err = conn.Exec(`INSERT INTO metric_definitions (code) VALUES ($1)`, code)
		require.NoError(t, err)
	}

	importID, userID := uuid.NewString(), uuid.NewString()
	_, err = conn.Exec(
		`INSERT INTO health_imports (id, user_id, storage_path, status, uploaded_at)
         VALUES ($1, $2, $3, $4, $5)`,
		importID, userID, "health-exports/test.zip", "processing", time.Now().UTC(),
	)
	require.NoError(t, err)
	return conn, importID, userID
}

func testRows(n int, base time.Time) []metric.Row {
	rows := make([]metric.Row, n)
	for i := range rows {
		rows[i] = metric.Row{
			Code:       metric.CodeRestingHeartRate,
			Value:      50 + float64(i),
			Unit:       "count/min",
			MeasuredAt: base.Add(time.Duration(i) * time.Hour),
			Source:     metric.SourceHealthExport,
		}
	}
	return rows
}

func TestLoadCatalog(t *testing.T) {
	conn, _, _ := openTestDB(t, metric.CodeVO2Max, metric.CodeBodyMass)

	catalog, err := LoadCatalog(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())

	_, ok := catalog.Resolve(metric.CodeVO2Max)
	assert.True(t, ok)
	_, ok = catalog.Resolve("not_a_metric")
	assert.False(t, ok)
}

func TestWriteSecondPassSkipsEverything(t *testing.T) {
	conn, importID, userID := openTestDB(t, metric.CodeRestingHeartRate)
	ctx := context.Background()
	catalog, err := LoadCatalog(ctx, conn)
	require.NoError(t, err)

	rows := testRows(7, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))

	counts, err := Write(ctx, conn, discardLogger(), catalog, importID, userID, rows, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), counts.Inserted)
	assert.Zero(t, counts.Skipped)
	assert.Zero(t, counts.Failed)

	counts, err = Write(ctx, conn, discardLogger(), catalog, importID, userID, rows, 3)
	require.NoError(t, err)
	assert.Zero(t, counts.Inserted)
	assert.Equal(t, int64(7), counts.Skipped)
}

func TestWriteDropsUnknownCodes(t *testing.T) {
	conn, importID, userID := openTestDB(t, metric.CodeRestingHeartRate)
	ctx := context.Background()
	catalog, err := LoadCatalog(ctx, conn)
	require.NoError(t, err)

	rows := testRows(2, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	rows = append(rows, metric.Row{
		Code: "mystery_metric", Value: 1,
		MeasuredAt: time.Now().UTC(), Source: metric.SourceHealthExport,
	})

	counts, err := Write(ctx, conn, discardLogger(), catalog, importID, userID, rows, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Inserted)
	assert.Equal(t, int64(1), counts.DroppedCodes)
}

func TestWriteEmptyRows(t *testing.T) {
	conn, importID, userID := openTestDB(t, metric.CodeRestingHeartRate)
	catalog, err := LoadCatalog(context.Background(), conn)
	require.NoError(t, err)

	counts, err := Write(context.Background(), conn, discardLogger(), catalog, importID, userID, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestWriteBatchFailureContinues(t *testing.T) {
	conn, importID, userID := openTestDB(t, metric.CodeRestingHeartRate)
	ctx := context.Background()
	catalog, err := LoadCatalog(ctx, conn)
	require.NoError(t, err)

	// A closed connection makes every batch fail at the store.
	rows := testRows(4, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	counts, err := Write(ctx, conn, discardLogger(), catalog, importID, userID, rows[:2], 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Inserted)

	require.NoError(t, conn.Close())
	counts, err = Write(ctx, conn, discardLogger(), catalog, importID, userID, rows[2:], 1)
	require.Error(t, err)
	assert.Equal(t, int64(2), counts.Failed)
	assert.Zero(t, counts.Inserted)
}
