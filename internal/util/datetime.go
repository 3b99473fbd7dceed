package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// exportTimeLayout matches the timestamp format used throughout health export
// documents, e.g. "2024-03-01 07:41:02 +1000".
const exportTimeLayout = "2006-01-02 15:04:05 -0700"

var exportTimeRegex = regexp.MustCompile(`^"?\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} [+-]\d{4}"?$`)

// IsExportTime checks if a string matches the export timestamp format
// (with optional surrounding quotes).
func IsExportTime(s string) bool {
	return exportTimeRegex.MatchString(s)
}

// ParseExportTime converts an export timestamp string, potentially surrounded
// by double quotes, to a time.Time carrying the record's own zone offset.
func ParseExportTime(s string) (time.Time, error) {
	trimmed := strings.Trim(s, `" `)
	t, err := time.Parse(exportTimeLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse export time from '%s': %w", s, err)
	}
	return t, nil
}

// TruncateError shortens an error message to at most limit characters for
// storage in the queue row's error column.
func TruncateError(err error, limit int) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= limit {
		return msg
	}
	return msg[:limit]
}
