package medication

import (
	"context"
	"time"
)

// Store persists schedules and occurrences. Lookups of a missing record
// return an error wrapping ErrNotFound.
type Store interface {
	ListSchedules(ctx context.Context) ([]*Schedule, error)
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	PutSchedule(ctx context.Context, schedule *Schedule) error
	DeleteSchedule(ctx context.Context, id string) error

	// ListOccurrences returns every occurrence dated from through to inclusive
	ListOccurrences(ctx context.Context, from, to time.Time) ([]*Occurrence, error)
	GetOccurrence(ctx context.Context, scheduleID string, date time.Time) (*Occurrence, error)
	// CreateOccurrence stores occurrence only if none exists for its schedule
	// and date, reporting whether it was written. The check and the write are
	// one atomic step.
	CreateOccurrence(ctx context.Context, occurrence *Occurrence) (bool, error)
	PutOccurrence(ctx context.Context, occurrence *Occurrence) error
	// MarkMissed sets the stored occurrence to Missed only while it is still
	// Upcoming, reporting whether it changed. The check and the write are one
	// atomic step.
	MarkMissed(ctx context.Context, scheduleID string, date time.Time) (bool, error)
	DeleteOccurrence(ctx context.Context, id string) error
	DeleteOccurrencesBySchedule(ctx context.Context, scheduleID string) (int, error)
	DeleteAllOccurrences(ctx context.Context) (int, error)
}

// Reminder delivers dose reminders for schedules
type Reminder interface {
	ScheduleReminder(schedule *Schedule) error
	CancelReminder(scheduleID string) error
}

// NopReminder ignores every request
type NopReminder struct{}

// ScheduleReminder does nothing
func (NopReminder) ScheduleReminder(*Schedule) error { return nil }

// CancelReminder does nothing
func (NopReminder) CancelReminder(string) error { return nil }
