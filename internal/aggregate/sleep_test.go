package aggregate

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/healthimport/internal/extractor"
	"github.com/vitalsync/healthimport/internal/metric"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func interval(t *testing.T, start, end string) extractor.Record {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)
	return extractor.Record{Kind: extractor.KindSleepAnalysis, Start: s, End: e}
}

func TestDayBucketsEmpty(t *testing.T) {
	assert.Nil(t, DayBuckets(discardLogger(), nil))
}

func TestDayBucketsSingleDay(t *testing.T) {
	rows := DayBuckets(discardLogger(), []extractor.Record{
		interval(t, "2024-03-01T23:00:00Z", "2024-03-02T02:00:00Z"),
		interval(t, "2024-03-02T02:30:00Z", "2024-03-02T07:30:00Z"),
	})
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, metric.CodeSleepDuration, row.Code)
	// Both segments end on 2024-03-02: 3h + 5h in one bucket.
	assert.InDelta(t, 8.0, row.Value, 1e-9)
	assert.Equal(t, "hr", row.Unit)
	assert.Equal(t, metric.SourceHealthExport, row.Source)
	// Stamped with the newest contributing end timestamp.
	assert.Equal(t, "2024-03-02T07:30:00Z", row.MeasuredAt.Format(time.RFC3339))
}

func TestDayBucketsTrailingWindowMean(t *testing.T) {
	// Three nights inside the trailing week plus one far outside it. Days with
	// no data do not drag the mean down.
	rows := DayBuckets(discardLogger(), []extractor.Record{
		interval(t, "2024-02-10T23:00:00Z", "2024-02-11T07:00:00Z"), // outside window
		interval(t, "2024-03-04T23:00:00Z", "2024-03-05T06:00:00Z"), // 7h
		interval(t, "2024-03-06T23:00:00Z", "2024-03-07T07:00:00Z"), // 8h
		interval(t, "2024-03-07T23:00:00Z", "2024-03-08T08:00:00Z"), // 9h
	})
	require.Len(t, rows, 1)
	assert.InDelta(t, 8.0, rows[0].Value, 1e-9)
	assert.Equal(t, "2024-03-08T08:00:00Z", rows[0].MeasuredAt.Format(time.RFC3339))
}

func TestDayBucketsDiscardsInsaneIntervals(t *testing.T) {
	rows := DayBuckets(discardLogger(), []extractor.Record{
		// End before start.
		interval(t, "2024-03-02T07:00:00Z", "2024-03-02T06:00:00Z"),
		// Zero duration.
		interval(t, "2024-03-02T07:00:00Z", "2024-03-02T07:00:00Z"),
		// 25 hours, over the sanity bound.
		interval(t, "2024-03-01T06:00:00Z", "2024-03-02T07:00:00Z"),
		// The one valid segment.
		interval(t, "2024-03-02T00:00:00Z", "2024-03-02T06:00:00Z"),
	})
	require.Len(t, rows, 1)
	assert.InDelta(t, 6.0, rows[0].Value, 1e-9)
}

func TestDayBucketsAllDiscarded(t *testing.T) {
	rows := DayBuckets(discardLogger(), []extractor.Record{
		interval(t, "2024-03-02T07:00:00Z", "2024-03-02T06:00:00Z"),
	})
	assert.Nil(t, rows)
}

func TestDayBucketsBucketsByEndDate(t *testing.T) {
	// A segment spanning midnight counts wholly toward the day it ends on.
	rows := DayBuckets(discardLogger(), []extractor.Record{
		interval(t, "2024-03-01T22:00:00Z", "2024-03-02T04:00:00Z"), // ends Mar 2: 6h
		interval(t, "2024-03-02T22:00:00Z", "2024-03-03T02:00:00Z"), // ends Mar 3: 4h
	})
	require.Len(t, rows, 1)
	assert.InDelta(t, 5.0, rows[0].Value, 1e-9)
}
