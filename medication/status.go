package medication

import (
	"fmt"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
)

// ToleranceMinutes either side of the scheduled time that still counts as on time
const ToleranceMinutes = 15

// IsOnTime reports whether actual is within the tolerance window of scheduled
func IsOnTime(scheduled, actual time.Time) bool {
	diff := datetime.MinutesBetween(scheduled, actual)
	if diff < 0 {
		diff = -diff
	}

	return diff <= ToleranceMinutes
}

// Classify intake at actual against scheduled. Early intake outside the
// window is Late; there is no early status.
func Classify(scheduled, actual time.Time) Status {
	if IsOnTime(scheduled, actual) {
		return OnTime
	}

	return Late
}

// LogIntake records that the dose was taken at actual
func LogIntake(occurrence *Occurrence, actual time.Time, notes string) {
	occurrence.ActualTime = &actual
	occurrence.Notes = notes
	occurrence.Status = Classify(occurrence.ScheduledTime, actual)
}

// MarkSkipped records a deliberately skipped dose, clearing intake details
func MarkSkipped(occurrence *Occurrence) {
	occurrence.Status = Skipped
	occurrence.ActualTime = nil
	occurrence.Notes = ""
}

// Cancel reverts a logged, skipped or missed occurrence to Upcoming
func Cancel(occurrence *Occurrence) error {
	if occurrence.Status == Upcoming {
		return fmt.Errorf("occurrence %s is already %s: %w", occurrence.ID, Upcoming, ErrInvalidTransition)
	}

	occurrence.Status = Upcoming
	occurrence.ActualTime = nil
	occurrence.Notes = ""

	return nil
}

// Age marks every Upcoming occurrence dated before now's calendar day as
// Missed and returns the ones it changed. Same-day occurrences stay Upcoming
// even once their scheduled time has passed.
func Age(occurrences []*Occurrence, now time.Time) []*Occurrence {
	var aged []*Occurrence
	for _, occurrence := range occurrences {
		if stale(occurrence, now) {
			occurrence.Status = Missed
			aged = append(aged, occurrence)
		}
	}

	return aged
}

func stale(occurrence *Occurrence, now time.Time) bool {
	return occurrence.Status == Upcoming && datetime.CompareDays(occurrence.Date, now) < 0
}

// DescribeDifference renders how far actual was from scheduled
func DescribeDifference(scheduled, actual time.Time) string {
	diff := datetime.MinutesBetween(scheduled, actual)

	switch {
	case diff == 0:
		return "on time"
	case diff > 0:
		return fmt.Sprintf("%d min late", diff)
	default:
		return fmt.Sprintf("%d min early", -diff)
	}
}
