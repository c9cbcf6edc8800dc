// Package medication expands recurring schedules into dated occurrences,
// classifies intake against the tolerance window, ages stale occurrences and
// rolls them up into daily and monthly statistics.
package medication

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
)

// Frequency of a schedule
type Frequency string

const (
	// Daily schedules produce an occurrence every day
	Daily Frequency = "daily"
	// Weekly schedules produce occurrences on their active weekdays
	Weekly Frequency = "weekly"
	// Custom is reserved and never produces occurrences
	Custom Frequency = "custom"
)

// Valid reports whether f is a known frequency
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Custom:
		return true
	}

	return false
}

// Schedule is a recurring medication definition. ActiveWeekdays is only read
// for Weekly schedules; other frequencies keep and ignore it so switching a
// schedule back to Weekly restores its days.
type Schedule struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Dosage         string             `json:"dosage"`
	TimeOfDay      datetime.TimeOfDay `json:"time_of_day"`
	Frequency      Frequency          `json:"frequency"`
	ActiveWeekdays []int              `json:"active_weekdays,omitempty"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        *time.Time         `json:"end_date,omitempty"`
	IsActive       bool               `json:"is_active"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Validate the schedule without modifying it. Weekdays must be in range for
// every frequency but are only required for Weekly.
func (s *Schedule) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}

	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}

	if strings.TrimSpace(s.Dosage) == "" {
		return &ValidationError{Field: "dosage", Reason: "is required"}
	}

	if !s.TimeOfDay.Valid() {
		return &ValidationError{Field: "time_of_day", Reason: fmt.Sprintf("%02d:%02d is out of range", s.TimeOfDay.Hour, s.TimeOfDay.Minute)}
	}

	if !s.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", s.Frequency)}
	}

	if s.Frequency == Weekly && len(s.ActiveWeekdays) == 0 {
		return &ValidationError{Field: "active_weekdays", Reason: "weekly schedules need at least one weekday"}
	}

	for _, day := range s.ActiveWeekdays {
		if day < 0 || day > 6 {
			return &ValidationError{Field: "active_weekdays", Reason: fmt.Sprintf("weekday %d is not between 0 and 6", day)}
		}
	}

	if s.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "is required"}
	}

	if s.EndDate != nil && datetime.CompareDays(*s.EndDate, s.StartDate) < 0 {
		return &ValidationError{Field: "end_date", Reason: "is before start_date"}
	}

	return nil
}

// ActiveOn reports whether weekday (0 = Sunday) is one of the schedule's days
func (s *Schedule) ActiveOn(weekday int) bool {
	for _, day := range s.ActiveWeekdays {
		if day == weekday {
			return true
		}
	}

	return false
}

// Weekdays returns the active weekdays sorted and without repeats
func (s *Schedule) Weekdays() []int {
	seen := make(map[int]bool, len(s.ActiveWeekdays))
	days := make([]int, 0, len(s.ActiveWeekdays))
	for _, day := range s.ActiveWeekdays {
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}

	sort.Ints(days)

	return days
}

// SortSchedules orders schedules by time of day, then name, then id
func SortSchedules(schedules []*Schedule) {
	sort.SliceStable(schedules, func(i, j int) bool {
		a, b := schedules[i], schedules[j]
		if a.TimeOfDay != b.TimeOfDay {
			return a.TimeOfDay.Before(b.TimeOfDay)
		}

		if a.Name != b.Name {
			return a.Name < b.Name
		}

		return a.ID < b.ID
	})
}
