package domain

import "time"

// TimeLayout is the canonical serialized timestamp format. The fractional
// part is fixed-width so lexical ordering of stored strings matches temporal
// ordering, which range queries on the metadata store rely on.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime serializes t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a serialized timestamp. Parsing is tolerant of any
// RFC 3339 fractional precision.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
