package medication

import (
	"context"
	"fmt"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
)

// ShouldGenerate reports whether schedule has a dose on date
func ShouldGenerate(schedule *Schedule, date time.Time) bool {
	if !schedule.IsActive {
		return false
	}

	if datetime.CompareDays(date, schedule.StartDate) < 0 {
		return false
	}

	if schedule.EndDate != nil && datetime.CompareDays(date, *schedule.EndDate) > 0 {
		return false
	}

	switch schedule.Frequency {
	case Daily:
		return true
	case Weekly:
		return schedule.ActiveOn(datetime.Weekday(date))
	default:
		// custom recurrence has no rule yet
		return false
	}
}

// OccurrencesForDate builds the pending occurrences every eligible schedule
// has on date, ordered by scheduled time. Nothing is persisted.
func OccurrencesForDate(schedules []*Schedule, date time.Time) []*Occurrence {
	var occurrences []*Occurrence
	for _, schedule := range schedules {
		if ShouldGenerate(schedule, date) {
			occurrences = append(occurrences, NewOccurrence(schedule, date))
		}
	}

	SortOccurrences(occurrences)

	return occurrences
}

// Generator materializes occurrences into a Store
type Generator struct {
	store Store
}

// NewGenerator for the given store
func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// Ensure creates every missing occurrence of schedules between from and to
// inclusive and returns the ones it created. Existing occurrences are never
// rewritten, so running it again over the same range creates nothing.
func (g *Generator) Ensure(ctx context.Context, schedules []*Schedule, from, to time.Time) ([]*Occurrence, error) {
	var created []*Occurrence
	for _, day := range datetime.DaysBetween(from, to) {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		for _, occurrence := range OccurrencesForDate(schedules, day) {
			ok, err := g.store.CreateOccurrence(ctx, occurrence)
			if err != nil {
				return created, fmt.Errorf("failed to create occurrence %s: %w", occurrence.ID, err)
			}

			if ok {
				created = append(created, occurrence)
			}
		}
	}

	return created, nil
}

// EnsureAll loads every schedule from the store and ensures their
// occurrences between from and to
func (g *Generator) EnsureAll(ctx context.Context, from, to time.Time) ([]*Occurrence, error) {
	schedules, err := g.store.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	return g.Ensure(ctx, schedules, from, to)
}

// Age marks the stale Upcoming occurrences among occurrences Missed in the
// store and returns the ones it changed. A listed occurrence that was written
// since it was read keeps the stored state, which replaces the listed copy.
func (g *Generator) Age(ctx context.Context, occurrences []*Occurrence, now time.Time) ([]*Occurrence, error) {
	var aged []*Occurrence
	for _, occurrence := range Age(occurrences, now) {
		marked, err := g.store.MarkMissed(ctx, occurrence.ScheduleID, occurrence.Date)
		if IsNotFound(err) {
			continue
		}

		if err != nil {
			return aged, fmt.Errorf("failed to mark occurrence %s missed: %w", occurrence.ID, err)
		}

		if marked {
			aged = append(aged, occurrence)
			continue
		}

		current, err := g.store.GetOccurrence(ctx, occurrence.ScheduleID, occurrence.Date)
		if err != nil {
			return aged, fmt.Errorf("failed to reload occurrence %s: %w", occurrence.ID, err)
		}

		*occurrence = *current
	}

	return aged, nil
}
