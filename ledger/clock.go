package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY KEY - Calendar-date identifier derived from a timestamp
// =============================================================================

// DayKey identifies one calendar day in the facility timezone, formatted
// as YYYY-MM-DD. Every comparison between a timestamp and the open day
// goes through DayKeyOf so that the truncation rule lives in one place.
type DayKey string

const dayKeyLayout = "2006-01-02"

// DayKeyOf truncates a timestamp to its calendar date in loc.
// Pure, no failure mode. A nil loc falls back to UTC.
func DayKeyOf(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.UTC
	}
	return DayKey(t.In(loc).Format(dayKeyLayout))
}

// ParseDayKey validates a YYYY-MM-DD string.
func ParseDayKey(s string) (DayKey, error) {
	if _, err := time.Parse(dayKeyLayout, s); err != nil {
		return "", fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return DayKey(s), nil
}

// MustDayKey is a test/config helper that panics on a malformed key.
func MustDayKey(s string) DayKey {
	d, err := ParseDayKey(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d DayKey) String() string { return string(d) }

// Time returns midnight of the day in loc. Zero time for an empty key.
func (d DayKey) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dayKeyLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// InMonth reports whether the day falls in the given year/month.
func (d DayKey) InMonth(year int, month time.Month) bool {
	t, err := time.Parse(dayKeyLayout, string(d))
	if err != nil {
		return false
	}
	return t.Year() == year && t.Month() == month
}

// MonthRange returns the first and last day keys of a calendar month.
func MonthRange(year int, month time.Month) (from, to DayKey) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return DayKey(first.Format(dayKeyLayout)), DayKey(last.Format(dayKeyLayout))
}
