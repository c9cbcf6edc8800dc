package medication

import (
	"fmt"
	"sort"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
)

// Status of one occurrence
type Status string

const (
	// Upcoming is a dose not yet taken or skipped
	Upcoming Status = "upcoming"
	// OnTime is a dose taken within ToleranceMinutes of its scheduled time
	OnTime Status = "on-time"
	// Late is a dose taken outside the tolerance window, early or late
	Late Status = "late"
	// Missed is an Upcoming dose whose day has passed
	Missed Status = "missed"
	// Skipped is a dose deliberately not taken
	Skipped Status = "skipped"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case Upcoming, OnTime, Late, Missed, Skipped:
		return true
	}

	return false
}

// Completed is true for intake that was logged
func (s Status) Completed() bool {
	return s == OnTime || s == Late
}

// Occurrence is one dose of a schedule on one calendar date. Name and dosage
// are copied from the schedule when the occurrence is created and are not
// updated by later schedule edits.
type Occurrence struct {
	ID             string     `json:"id"`
	ScheduleID     string     `json:"schedule_id"`
	MedicationName string     `json:"medication_name"`
	Dosage         string     `json:"dosage"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	Date           time.Time  `json:"date"`
	Status         Status     `json:"status"`
	ActualTime     *time.Time `json:"actual_time,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// OccurrenceID is the identity of a schedule's occurrence on date
func OccurrenceID(scheduleID string, date time.Time) string {
	return scheduleID + "-" + datetime.FormatDate(date)
}

// ParseOccurrenceID splits an occurrence id into its schedule id and date
func ParseOccurrenceID(id string, loc *time.Location) (scheduleID string, date time.Time, err error) {
	const suffix = len("-" + datetime.DateLayout)
	if len(id) <= suffix || id[len(id)-suffix] != '-' {
		return "", time.Time{}, fmt.Errorf("occurrence id %q has no date suffix", id)
	}

	date, err = datetime.ParseDate(id[len(id)-suffix+1:], loc)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("occurrence id %q: %w", id, err)
	}

	return id[:len(id)-suffix], date, nil
}

// NewOccurrence builds the pending occurrence of schedule on date
func NewOccurrence(schedule *Schedule, date time.Time) *Occurrence {
	day := datetime.StartOfDay(date)

	return &Occurrence{
		ID:             OccurrenceID(schedule.ID, day),
		ScheduleID:     schedule.ID,
		MedicationName: schedule.Name,
		Dosage:         schedule.Dosage,
		ScheduledTime:  datetime.Combine(day, schedule.TimeOfDay),
		Date:           day,
		Status:         Upcoming,
	}
}

// SortOccurrences orders occurrences by scheduled time, then schedule id
func SortOccurrences(occurrences []*Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		a, b := occurrences[i], occurrences[j]
		if !a.ScheduledTime.Equal(b.ScheduledTime) {
			return a.ScheduledTime.Before(b.ScheduledTime)
		}

		return a.ScheduleID < b.ScheduleID
	})
}
