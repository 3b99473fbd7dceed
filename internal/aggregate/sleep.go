// Package aggregate holds the two pure aggregation algorithms run over the
// extractor's buffered lanes: day-bucketed summation and temporal pairing.
package aggregate

import (
	"log/slog"
	"time"

	"github.com/vitalsync/healthimport/internal/extractor"
	"github.com/vitalsync/healthimport/internal/metric"
)

const (
	// Sanity bound: a single interval longer than a day is malformed input.
	maxIntervalDuration = 24 * time.Hour

	// Trailing window for the sleep summary, anchored to the newest day with
	// data. Days without data inside the window do not dilute the average.
	sleepWindowDays = 7
)

// DayBuckets groups interval records by the UTC calendar date of their end
// timestamp, sums durations per day, and emits a single row: the mean of the
// per-day sums over the trailing window ending at the most recent day with
// data, in hours, stamped with the newest contributing end timestamp.
// Records with non-positive durations or durations over 24 hours are
// discarded.
func DayBuckets(logger *slog.Logger, intervals []extractor.Record) []metric.Row {
	if len(intervals) == 0 {
		return nil
	}

	perDay := make(map[string]time.Duration)
	var latestEnd time.Time
	discarded := 0

	for _, rec := range intervals {
		d := rec.End.Sub(rec.Start)
		if d <= 0 || d > maxIntervalDuration {
			discarded++
			continue
		}
		day := rec.End.UTC().Format("2006-01-02")
		perDay[day] += d
		if rec.End.After(latestEnd) {
			latestEnd = rec.End
		}
	}

	if len(perDay) == 0 {
		logger.Info("No usable interval records after sanity filtering.",
			slog.Int("discarded", discarded))
		return nil
	}

	latestDay := latestEnd.UTC().Truncate(24 * time.Hour)
	windowStart := latestDay.AddDate(0, 0, -(sleepWindowDays - 1))

	var total time.Duration
	daysWithData := 0
	for day, sum := range perDay {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		if t.Before(windowStart) || t.After(latestDay) {
			continue
		}
		total += sum
		daysWithData++
	}
	if daysWithData == 0 {
		return nil
	}

	avg := total / time.Duration(daysWithData)
	logger.Info("Day-bucket aggregation complete.",
		slog.Int("days_with_data", daysWithData),
		slog.Int("intervals_discarded", discarded),
		slog.Duration("window_average", avg),
	)

	return []metric.Row{{
		Code:       metric.CodeSleepDuration,
		Value:      avg.Hours(),
		Unit:       "hr",
		MeasuredAt: latestEnd,
		Source:     metric.SourceHealthExport,
	}}
}
