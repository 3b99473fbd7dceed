package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vitalsync/healthimport/internal/metric"
)

// MetricDefinition maps a stable string code to its internal identifier.
type MetricDefinition struct {
	ID          int64
	Code        string
	DisplayName sql.NullString
	Unit        sql.NullString
}

// LoadMetricDefinitions reads the full definitions table. Loaded once per
// process lifetime and cached by the writer, not re-read per item.
func LoadMetricDefinitions(ctx context.Context, conn *sql.DB) ([]MetricDefinition, error) {
	rows, err := conn.QueryContext(ctx, `SELECT id, code, display_name, unit FROM metric_definitions`)
	if err != nil {
		return nil, fmt.Errorf("query metric definitions: %w", err)
	}
	defer rows.Close()

	var defs []MetricDefinition
	for rows.Next() {
		var d MetricDefinition
		if err := rows.Scan(&d.ID, &d.Code, &d.DisplayName, &d.Unit); err != nil {
			return nil, fmt.Errorf("scan metric definition: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric definitions: %w", err)
	}
	return defs, nil
}

// ResolvedRow is a metric row whose code has already been resolved to an
// internal metric identifier.
type ResolvedRow struct {
	MetricID int64
	Row      metric.Row
}

// InsertMetricValues writes one batch of resolved rows with a conditional
// insert. The unique (import_id, metric_id, measured_at) tuple is the
// idempotency key: rows violating it are silently ignored rather than
// errored, so re-processing the same archive is safe. Returns the number of
// rows actually inserted; skipped duplicates are the remainder.
func InsertMetricValues(ctx context.Context, conn *sql.DB, importID, userID string, batch []ResolvedRow) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO metric_values (user_id, metric_id, import_id, value, unit, measured_at, source) VALUES `)
	args := make([]any, 0, len(batch)*7)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args,
			userID, r.MetricID, importID, r.Row.Value, r.Row.Unit,
			r.Row.MeasuredAt.UTC().Truncate(time.Second), r.Row.Source,
		)
	}
	sb.WriteString(` ON CONFLICT (import_id, metric_id, measured_at) DO NOTHING`)

	res, err := conn.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert metric values batch (%d rows): %w", len(batch), err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("metric values rows affected: %w", err)
	}
	return inserted, nil
}

// timeColumn normalizes an aggregate timestamp column to time.Time. MIN/MAX
// expressions lose the column's declared type, so some drivers hand the value
// back as text instead of a parsed time.
func timeColumn(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case []byte:
		return parseColumnTime(string(t))
	case string:
		return parseColumnTime(t)
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected time column type %T", v)
	}
}

var columnTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

func parseColumnTime(s string) (time.Time, error) {
	for _, layout := range columnTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time column value %q", s)
}

// MetricSummary aggregates persisted values per metric code.
type MetricSummary struct {
	Code     string
	Count    int64
	FirstAt  time.Time
	LatestAt time.Time
}

// SummarizeMetricValues reports per-code row counts and time coverage,
// optionally restricted to a single user. Used by the stats command.
func SummarizeMetricValues(ctx context.Context, conn *sql.DB, userID string) ([]MetricSummary, error) {
	query := `
        SELECT d.code, COUNT(*), MIN(v.measured_at), MAX(v.measured_at)
        FROM metric_values v
        JOIN metric_definitions d ON d.id = v.metric_id`
	args := []any{}
	if userID != "" {
		query += ` WHERE v.user_id = $1`
		args = append(args, userID)
	}
	query += ` GROUP BY d.code ORDER BY d.code`

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize metric values: %w", err)
	}
	defer rows.Close()

	var summaries []MetricSummary
	for rows.Next() {
		var s MetricSummary
		var firstRaw, latestRaw any
		if err := rows.Scan(&s.Code, &s.Count, &firstRaw, &latestRaw); err != nil {
			return nil, fmt.Errorf("scan metric summary: %w", err)
		}
		if s.FirstAt, err = timeColumn(firstRaw); err != nil {
			return nil, fmt.Errorf("metric summary first_at: %w", err)
		}
		if s.LatestAt, err = timeColumn(latestRaw); err != nil {
			return nil, fmt.Errorf("metric summary latest_at: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric summaries: %w", err)
	}
	return summaries, nil
}
