package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 parses an RFC 3339 timestamp, such as an analysis reference
// time supplied on the command line.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}
