package datetime

import (
	"errors"
	"fmt"
	"time"
)

// TimeLayout is the textual wall-clock time, HH:mm
const TimeLayout = "15:04"

// ErrInvalidTimeOfDay occurs when an hour or minute is out of range
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time without a date or zone
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay validates hour and minute
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	tod := TimeOfDay{Hour: hour, Minute: minute}
	if !tod.Valid() {
		return TimeOfDay{}, fmt.Errorf("%02d:%02d: %w", hour, minute, ErrInvalidTimeOfDay)
	}

	return tod, nil
}

// ParseTimeOfDay reads HH:mm
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	t, err := time.Parse(TimeLayout, value)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%q: %w", value, ErrInvalidTimeOfDay)
	}

	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// TimeOfDayOf extracts the wall-clock hour and minute of t
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Valid reports whether the hour and minute are in range
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Minutes since midnight
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before orders two times of day
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// Add shifts the time of day by minutes, reporting how many days the shift
// crossed (negative when it wrapped to the previous day)
func (t TimeOfDay) Add(minutes int) (TimeOfDay, int) {
	total := t.Minutes() + minutes
	days := total / (24 * 60)
	total %= 24 * 60
	if total < 0 {
		total += 24 * 60
		days--
	}

	return TimeOfDay{Hour: total / 60, Minute: total % 60}, days
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalText renders HH:mm
func (t TimeOfDay) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%02d:%02d: %w", t.Hour, t.Minute, ErrInvalidTimeOfDay)
	}

	return []byte(t.String()), nil
}

// UnmarshalText reads HH:mm
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}
