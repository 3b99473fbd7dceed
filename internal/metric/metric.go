// Package metric defines the normalized measurement row produced by the
// ingestion pipeline. Rows are the only artifact that crosses from the core
// into the backing store.
package metric

import "time"

// Canonical metric codes. These must match the code column of the
// metric_definitions table; rows whose code is unknown at write time are
// dropped, not errored.
const (
	CodeVO2Max           = "vo2_max"
	CodeRestingHeartRate = "resting_heart_rate"
	CodeHRVSDNN          = "hrv_sdnn"
	CodeBodyMass         = "body_mass"
	CodeBodyFatPct       = "body_fat_pct"
	CodeSleepDuration    = "sleep_duration"
	CodeBPSystolic       = "bp_systolic"
	CodeBPDiastolic      = "bp_diastolic"
)

// SourceHealthExport tags rows originating from an uploaded health export
// archive, as opposed to manually entered or device-synced values.
const SourceHealthExport = "health_export"

// Row is a normalized, in-memory measurement: canonical code, numeric value,
// unit string, a single authoritative timestamp, and a source tag.
type Row struct {
	Code       string
	Value      float64
	Unit       string
	MeasuredAt time.Time
	Source     string
}
