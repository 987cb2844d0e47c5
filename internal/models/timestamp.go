package models

import (
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 form documents carry: UTC, millisecond
// precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders Unix milliseconds as a document timestamp.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimestampLayout)
}

// ParseTimestamp converts a document timestamp to Unix milliseconds. Any
// RFC 3339 value is accepted.
func ParseTimestamp(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}
