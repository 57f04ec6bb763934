package model

import (
	"fmt"
	"time"
)

// TimeLayout is the only textual date format read or written by the store.
const TimeLayout = "2006-01-02T15:04:05Z"

var (
	// MinTime is the release date of a client with no activation schedule.
	MinTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	// MaxTime is the expiration date of a client that never expires.
	MaxTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// Canonical returns t in UTC truncated to whole seconds, the precision kept
// on disk.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected %s: %w", TimeLayout, err)
	}
	// time.Parse accepts fractional seconds the layout does not have.
	if FormatTime(t) != s {
		return time.Time{}, fmt.Errorf("expected %s: %q is not canonical", TimeLayout, s)
	}
	return t.UTC(), nil
}
