// Package extractor walks an export document as an incremental token stream
// and routes the bounded set of known record kinds into three lanes: rows
// emitted directly, intervals buffered for day-bucket aggregation, and
// two-part readings buffered for temporal pairing. The document is never
// materialized in memory; it can be an order of magnitude larger than RAM.
package extractor

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/vitalsync/healthimport/internal/metric"
	"github.com/vitalsync/healthimport/internal/util"
)

// Export record kind identifiers on the allow-list. Everything else in the
// document is skipped with no per-element work beyond the kind lookup.
const (
	KindVO2Max           = "HKQuantityTypeIdentifierVO2Max"
	KindRestingHeartRate = "HKQuantityTypeIdentifierRestingHeartRate"
	KindHRVSDNN          = "HKQuantityTypeIdentifierHeartRateVariabilitySDNN"
	KindBodyMass         = "HKQuantityTypeIdentifierBodyMass"
	KindBodyFatPct       = "HKQuantityTypeIdentifierBodyFatPercentage"
	KindSleepAnalysis    = "HKCategoryTypeIdentifierSleepAnalysis"
	KindBPSystolic       = "HKQuantityTypeIdentifierBloodPressureSystolic"
	KindBPDiastolic      = "HKQuantityTypeIdentifierBloodPressureDiastolic"
)

// directCodes maps direct-lane kinds to their canonical metric codes.
var directCodes = map[string]string{
	KindVO2Max:           metric.CodeVO2Max,
	KindRestingHeartRate: metric.CodeRestingHeartRate,
	KindHRVSDNN:          metric.CodeHRVSDNN,
	KindBodyMass:         metric.CodeBodyMass,
	KindBodyFatPct:       metric.CodeBodyFatPct,
}

// pairedKinds marks the two-part reading kinds buffered for pairing.
var pairedKinds = map[string]bool{
	KindBPSystolic:  true,
	KindBPDiastolic: true,
}

// asleepValues are the sleep-analysis category values that count as time
// asleep. InBed and Awake entries overlap asleep stages and are not sleep.
var asleepValues = map[string]bool{
	"HKCategoryValueSleepAnalysisAsleep":            true,
	"HKCategoryValueSleepAnalysisAsleepUnspecified": true,
	"HKCategoryValueSleepAnalysisAsleepCore":        true,
	"HKCategoryValueSleepAnalysisAsleepDeep":        true,
	"HKCategoryValueSleepAnalysisAsleepREM":         true,
}

// Record is the transient in-memory form of one matched export entry. It
// never leaves the extractor/aggregator boundary.
type Record struct {
	Kind  string
	Value float64
	Unit  string
	Start time.Time
	End   time.Time
}

// Result carries the three lanes of a single pass plus observability stats.
type Result struct {
	Direct    []metric.Row // emitted immediately
	Intervals []Record     // buffered for day-bucket aggregation
	Paired    []Record     // buffered for timestamp pairing
	Stats     Stats
}

// Run reads the export document once through an incremental XML decoder.
// Malformed individual records (bad value, bad timestamp) are logged and
// skipped; a tokenizer-level syntax error cannot be resynchronized and aborts
// the pass.
func Run(ctx context.Context, logger *slog.Logger, r io.Reader) (*Result, error) {
	result := &Result{Stats: newStats()}
	dec := xml.NewDecoder(r)
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("Extraction cancelled by context.", "error", ctx.Err())
			return nil, ctx.Err()
		default:
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse export stream: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Record" {
			continue
		}
		result.Stats.Scanned++

		kind := attrValue(se, "type")
		if _, direct := directCodes[kind]; !direct && !pairedKinds[kind] && kind != KindSleepAnalysis {
			// Dominant case by volume: not on the allow-list, no further work.
			continue
		}

		rec, keep, err := buildRecord(se, kind)
		if err != nil {
			result.Stats.Malformed++
			logger.Warn("Skipping malformed record.", "kind", kind, "error", err)
			continue
		}
		if !keep {
			continue
		}

		result.Stats.observe(kind, rec)
		result.Stats.Matched++

		switch {
		case kind == KindSleepAnalysis:
			result.Intervals = append(result.Intervals, rec)
		case pairedKinds[kind]:
			result.Paired = append(result.Paired, rec)
		default:
			result.Direct = append(result.Direct, metric.Row{
				Code:       directCodes[kind],
				Value:      rec.Value,
				Unit:       rec.Unit,
				MeasuredAt: rec.Start,
				Source:     metric.SourceHealthExport,
			})
		}
	}

	logger.Info("Extraction pass finished.",
		slog.Int64("records_scanned", result.Stats.Scanned),
		slog.Int64("records_matched", result.Stats.Matched),
		slog.Int64("records_malformed", result.Stats.Malformed),
		slog.Int("direct", len(result.Direct)),
		slog.Int("intervals", len(result.Intervals)),
		slog.Int("paired", len(result.Paired)),
		slog.Duration("duration", time.Since(started)),
	)
	return result, nil
}

// buildRecord parses the fixed attribute set of a matched element. The
// second return value is false for records that parse fine but are filtered
// (e.g. awake sleep-analysis entries).
func buildRecord(se xml.StartElement, kind string) (Record, bool, error) {
	rec := Record{Kind: kind, Unit: attrValue(se, "unit")}

	start, err := util.ParseExportTime(attrValue(se, "startDate"))
	if err != nil {
		return rec, false, fmt.Errorf("startDate: %w", err)
	}
	rec.Start = start

	end, err := util.ParseExportTime(attrValue(se, "endDate"))
	if err != nil {
		return rec, false, fmt.Errorf("endDate: %w", err)
	}
	rec.End = end

	rawValue := attrValue(se, "value")
	if kind == KindSleepAnalysis {
		// Category record: value is a stage name, duration comes from the
		// start/end interval.
		return rec, asleepValues[rawValue], nil
	}

	v, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return rec, false, fmt.Errorf("value %q: %w", rawValue, err)
	}
	rec.Value = v
	return rec, true, nil
}

func attrValue(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
