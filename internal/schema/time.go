package schema

import (
	"time"
)

// TimeLayout is the layout of every timestamp the application writes.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t as a UTC ISO-8601 string with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Now returns the current time formatted with FormatTime.
func Now() string {
	return FormatTime(time.Now())
}

// ParseTime parses any RFC 3339 timestamp, with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func checkTime(record, field, value string) error {
	if value == "" {
		return invalid(record, field, "is required")
	}
	if _, err := ParseTime(value); err != nil {
		return invalid(record, field, "is not an ISO-8601 timestamp")
	}
	return nil
}

// NormalizeTime rewrites an RFC 3339 timestamp in TimeLayout so stored values
// order correctly as text.
func NormalizeTime(s string) (string, error) {
	t, err := ParseTime(s)
	if err != nil {
		return "", err
	}
	return FormatTime(t), nil
}
