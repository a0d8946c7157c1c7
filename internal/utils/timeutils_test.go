package utils

import (
	"testing"
	"time"
)

func TestParseRFC3339(t *testing.T) {
	got, err := ParseRFC3339("2026-09-01T12:00:00Z")
	if err != nil {
		t.Fatalf("ParseRFC3339: %v", err)
	}
	want := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if _, err := ParseRFC3339(""); err == nil {
		t.Fatal("empty value accepted")
	}
	if _, err := ParseRFC3339("yesterday at noon"); err == nil {
		t.Fatal("non-RFC3339 value accepted")
	}
}
