package extractor

import (
	"log/slog"
	"sort"
	"time"
)

const maxSampleValues = 3

// KindStats tracks per-kind observability counters. They have no effect on
// correctness.
type KindStats struct {
	Count   int64
	First   time.Time
	Last    time.Time
	Samples []float64
}

// Stats carries the running counters of one extraction pass.
type Stats struct {
	Scanned   int64
	Matched   int64
	Malformed int64
	PerKind   map[string]*KindStats
}

func newStats() Stats {
	return Stats{PerKind: make(map[string]*KindStats)}
}

func (s *Stats) observe(kind string, rec Record) {
	ks, ok := s.PerKind[kind]
	if !ok {
		ks = &KindStats{}
		s.PerKind[kind] = ks
	}
	ks.Count++
	if ks.First.IsZero() || rec.Start.Before(ks.First) {
		ks.First = rec.Start
	}
	if rec.End.After(ks.Last) {
		ks.Last = rec.End
	}
	if len(ks.Samples) < maxSampleValues {
		ks.Samples = append(ks.Samples, rec.Value)
	}
}

// Log emits one line per observed kind, in stable order.
func (s *Stats) Log(logger *slog.Logger) {
	kinds := make([]string, 0, len(s.PerKind))
	for k := range s.PerKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ks := s.PerKind[k]
		logger.Info("Kind summary.",
			slog.String("kind", k),
			slog.Int64("count", ks.Count),
			slog.Time("first", ks.First),
			slog.Time("last", ks.Last),
			slog.Any("samples", ks.Samples),
		)
	}
}
