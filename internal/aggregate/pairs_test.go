package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/healthimport/internal/extractor"
	"github.com/vitalsync/healthimport/internal/metric"
)

func reading(t *testing.T, kind string, value float64, start string) extractor.Record {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	return extractor.Record{Kind: kind, Value: value, Unit: "mmHg", Start: s, End: s}
}

func TestPairReadingsEmpty(t *testing.T) {
	assert.Nil(t, PairReadings(discardLogger(), nil))
}

func TestPairReadingsCompletePair(t *testing.T) {
	// Halves recorded seconds apart still land in the same minute group.
	rows := PairReadings(discardLogger(), []extractor.Record{
		reading(t, extractor.KindBPSystolic, 121, "2024-03-01T09:30:12Z"),
		reading(t, extractor.KindBPDiastolic, 79, "2024-03-01T09:30:15Z"),
	})
	require.Len(t, rows, 2)

	byCode := map[string]metric.Row{}
	for _, row := range rows {
		byCode[row.Code] = row
	}
	assert.Equal(t, 121.0, byCode[metric.CodeBPSystolic].Value)
	assert.Equal(t, 79.0, byCode[metric.CodeBPDiastolic].Value)

	// Both rows carry the systolic record's original timestamp, seconds intact.
	for _, row := range rows {
		assert.Equal(t, "2024-03-01T09:30:12Z", row.MeasuredAt.Format(time.RFC3339))
	}
}

func TestPairReadingsLoneHalfDiscarded(t *testing.T) {
	rows := PairReadings(discardLogger(), []extractor.Record{
		reading(t, extractor.KindBPSystolic, 130, "2024-03-01T10:00:00Z"),
	})
	assert.Empty(t, rows)
}

func TestPairReadingsDuplicateHalfDiscardsGroup(t *testing.T) {
	rows := PairReadings(discardLogger(), []extractor.Record{
		reading(t, extractor.KindBPSystolic, 121, "2024-03-01T09:30:05Z"),
		reading(t, extractor.KindBPSystolic, 124, "2024-03-01T09:30:40Z"),
		reading(t, extractor.KindBPDiastolic, 79, "2024-03-01T09:30:10Z"),
	})
	assert.Empty(t, rows)
}

func TestPairReadingsDifferentMinutesStaySeparate(t *testing.T) {
	rows := PairReadings(discardLogger(), []extractor.Record{
		reading(t, extractor.KindBPSystolic, 121, "2024-03-01T09:30:59Z"),
		reading(t, extractor.KindBPDiastolic, 79, "2024-03-01T09:31:01Z"),
	})
	assert.Empty(t, rows)
}

func TestPairReadingsMultiplePairs(t *testing.T) {
	rows := PairReadings(discardLogger(), []extractor.Record{
		reading(t, extractor.KindBPSystolic, 121, "2024-03-01T09:30:00Z"),
		reading(t, extractor.KindBPDiastolic, 79, "2024-03-01T09:30:03Z"),
		reading(t, extractor.KindBPSystolic, 118, "2024-03-02T08:15:30Z"),
		reading(t, extractor.KindBPDiastolic, 76, "2024-03-02T08:15:33Z"),
		// Lone half on a third day.
		reading(t, extractor.KindBPDiastolic, 80, "2024-03-03T08:00:00Z"),
	})
	require.Len(t, rows, 4)
	// Groups are emitted in chronological order.
	assert.Equal(t, "2024-03-01T09:30:00Z", rows[0].MeasuredAt.Format(time.RFC3339))
	assert.Equal(t, "2024-03-02T08:15:30Z", rows[2].MeasuredAt.Format(time.RFC3339))
}
