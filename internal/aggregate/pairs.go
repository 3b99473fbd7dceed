package aggregate

import (
	"log/slog"
	"sort"
	"time"

	"github.com/vitalsync/healthimport/internal/extractor"
	"github.com/vitalsync/healthimport/internal/metric"
)

// pairedCodes maps the two-part reading kinds to their canonical codes.
var pairedCodes = map[string]string{
	extractor.KindBPSystolic:  metric.CodeBPSystolic,
	extractor.KindBPDiastolic: metric.CodeBPDiastolic,
}

// PairReadings groups two-part records by their start timestamp rounded down
// to the minute. A group is complete only when it holds exactly one record of
// each sub-kind; incomplete groups are discarded because a lone half-reading
// is not a valid domain value. Both emitted rows carry the systolic record's
// original, un-rounded timestamp.
func PairReadings(logger *slog.Logger, records []extractor.Record) []metric.Row {
	if len(records) == 0 {
		return nil
	}

	groups := make(map[time.Time][]extractor.Record)
	for _, rec := range records {
		key := rec.Start.Truncate(time.Minute)
		groups[key] = append(groups[key], rec)
	}

	keys := make([]time.Time, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	var rows []metric.Row
	pairsFound := 0
	recordsDiscarded := 0

	for _, key := range keys {
		group := groups[key]
		var systolic, diastolic *extractor.Record
		complete := true
		for i := range group {
			switch group[i].Kind {
			case extractor.KindBPSystolic:
				if systolic != nil {
					complete = false
				}
				systolic = &group[i]
			case extractor.KindBPDiastolic:
				if diastolic != nil {
					complete = false
				}
				diastolic = &group[i]
			}
		}
		if !complete || systolic == nil || diastolic == nil {
			recordsDiscarded += len(group)
			continue
		}

		pairsFound++
		measuredAt := systolic.Start
		rows = append(rows,
			metric.Row{
				Code:       pairedCodes[systolic.Kind],
				Value:      systolic.Value,
				Unit:       systolic.Unit,
				MeasuredAt: measuredAt,
				Source:     metric.SourceHealthExport,
			},
			metric.Row{
				Code:       pairedCodes[diastolic.Kind],
				Value:      diastolic.Value,
				Unit:       diastolic.Unit,
				MeasuredAt: measuredAt,
				Source:     metric.SourceHealthExport,
			},
		)
	}

	logger.Info("Temporal pairing complete.",
		slog.Int("pairs_found", pairsFound),
		slog.Int("records_discarded", recordsDiscarded),
	)
	return rows
}
