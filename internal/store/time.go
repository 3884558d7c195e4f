package store

import "time"

// Timestamps are persisted as RFC 3339 text so one schema serves both
// drivers. The empty string encodes the zero time (nullable timestamps).

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime reads a stored timestamp. Unparseable values come back zero:
// the column is service-written, so a bad value means a migration bug, not
// caller input.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
