// Package datetime holds the calendar math shared by schedule expansion,
// status classification and statistics. Day equality is decided on calendar
// components, never on raw timestamps.
package datetime

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the textual calendar date, YYYY-MM-DD
	DateLayout = "2006-01-02"
	// MonthLayout is the textual calendar month, YYYY-MM
	MonthLayout = "2006-01"
)

// StartOfDay truncates t to midnight in t's own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in a's location
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b.In(a.Location())))
}

// Weekday of t, 0 (Sunday) through 6 (Saturday)
func Weekday(t time.Time) int {
	return int(t.Weekday())
}

// MonthRange returns the first and last calendar day of t's month, inclusive
func MonthRange(t time.Time) (first, last time.Time) {
	y, m, _ := t.Date()
	first = time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	last = time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location())

	return first, last
}

// DaysBetween enumerates every calendar day from start to end inclusive. It
// returns nil when start is after end.
func DaysBetween(start, end time.Time) []time.Time {
	from := StartOfDay(start)
	to := StartOfDay(end.In(start.Location()))
	if from.After(to) {
		return nil
	}

	var days []time.Time
	y, m, d := from.Date()
	for i := 0; ; i++ {
		// built from components so DST transitions never skip or repeat a day
		day := time.Date(y, m, d+i, 0, 0, 0, 0, from.Location())
		if day.After(to) {
			break
		}

		days = append(days, day)
	}

	return days
}

// AddDays moves a calendar day by n days, staying at midnight
func AddDays(date time.Time, n int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, date.Location())
}

// Combine applies a wall-clock time of day to date, seconds zeroed
func Combine(date time.Time, tod TimeOfDay) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, date.Location())
}

// MinutesBetween is the signed whole minutes from a to b, truncated toward zero
func MinutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

// FormatDate renders t's calendar day as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate reads a YYYY-MM-DD calendar day at midnight in loc
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}

	return t, nil
}

// ParseMonth reads a YYYY-MM month as its first day in loc
func ParseMonth(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: %w", value, err)
	}

	return t, nil
}

// CompareDays orders the calendar days of a and b, each read in its own
// location. Stored dates keep their year, month and day across JSON round
// trips even when the zone comes back as a fixed offset, so day identity is
// taken from those components.
func CompareDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	switch {
	case ay != by:
		return sign(ay - by)
	case am != bm:
		return sign(int(am) - int(bm))
	default:
		return sign(ad - bd)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
