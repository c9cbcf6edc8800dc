// Package tracker is the local-first front of the medication engine. Every
// mutation lands in the local store before the call returns and is pushed to
// the remote store in the background; reads answer from the local store and
// optionally deliver a refreshed view once the remote has been consulted.
package tracker

import (
	"context"
	"fmt"
	"log"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"github.com/google/uuid"
)

// DefaultLookaheadDays of occurrences generated when a schedule is saved
const DefaultLookaheadDays = 60

// Remote store the service pushes to and refreshes from
type Remote interface {
	FetchSchedules(ctx context.Context) ([]*medication.Schedule, error)
	AddSchedule(ctx context.Context, schedule *medication.Schedule) error
	UpdateSchedule(ctx context.Context, schedule *medication.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	FetchOccurrences(ctx context.Context, from, to time.Time) ([]*medication.Occurrence, error)
	UpdateOccurrence(ctx context.Context, occurrence *medication.Occurrence) error
	DeleteOccurrence(ctx context.Context, id string) error
	ResetOccurrences(ctx context.Context) (int, error)
}

// Option configures a Service
type Option func(*Service)

// WithRemote pushes mutations to remote and refreshes views from it
func WithRemote(remote Remote) Option {
	return func(s *Service) {
		s.remote = remote
	}
}

// WithReminder keeps reminder in step with schedule changes
func WithReminder(reminder medication.Reminder) Option {
	return func(s *Service) {
		s.reminder = reminder
	}
}

// WithLookahead sets how many days starting today are generated eagerly
func WithLookahead(days int) Option {
	return func(s *Service) {
		s.lookaheadDays = days
	}
}

// WithClock replaces the source of the current time
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRetry sets the push attempts per mutation and the base delay between
// them. The nth retry waits n times delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *Service) {
		s.pushes.attempts = attempts
		s.pushes.delay = delay
	}
}

// Service for schedules and their occurrences
type Service struct {
	store         medication.Store
	generator     *medication.Generator
	remote        Remote
	reminder      medication.Reminder
	loc           *time.Location
	lookaheadDays int
	now           func() time.Time
	pushes        *pushQueue
}

// NewService over the local store with calendar math in loc. Without
// WithRemote the service works offline only.
func NewService(store medication.Store, loc *time.Location, opts ...Option) *Service {
	s := &Service{
		store:         store,
		generator:     medication.NewGenerator(store),
		reminder:      medication.NopReminder{},
		loc:           loc,
		lookaheadDays: DefaultLookaheadDays,
		now:           time.Now,
		pushes:        newPushQueue(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.remote != nil {
		s.pushes.start(s.remote)
	}

	return s
}

// Close stops accepting pushes and waits for the queued ones to be delivered
// or given up on
func (s *Service) Close() {
	s.pushes.close()
}

func (s *Service) today() time.Time {
	return datetime.StartOfDay(s.now().In(s.loc))
}

func (s *Service) push(key, description string, send func(ctx context.Context, remote Remote) error) {
	if s.remote == nil {
		return
	}

	s.pushes.enqueue(push{key: key, description: description, send: send})
}

func (s *Service) ensureLookahead(ctx context.Context, schedule *medication.Schedule) error {
	if s.lookaheadDays <= 0 {
		return nil
	}

	from := s.today()
	to := datetime.AddDays(from, s.lookaheadDays-1)

	created, err := s.generator.Ensure(ctx, []*medication.Schedule{schedule}, from, to)
	if err != nil {
		return fmt.Errorf("failed to generate occurrences for schedule %s: %w", schedule.ID, err)
	}

	if len(created) > 0 {
		log.Printf("[Tracker] generated %d occurrences for schedule %s", len(created), schedule.ID)
	}

	return nil
}

func (s *Service) syncReminder(schedule *medication.Schedule) {
	if err := s.reminder.ScheduleReminder(schedule); err != nil {
		log.Printf("[Tracker] failed to schedule reminder for %s: %v", schedule.ID, err)
	}
}

// reminderSyncer is a Reminder that can replace its whole set at once
type reminderSyncer interface {
	Sync(schedules []*medication.Schedule) error
}

// syncReminders makes the reminders match schedules
func (s *Service) syncReminders(schedules []*medication.Schedule) {
	if syncer, ok := s.reminder.(reminderSyncer); ok {
		if err := syncer.Sync(schedules); err != nil {
			log.Printf("[Tracker] failed to sync reminders: %v", err)
		}

		return
	}

	for _, schedule := range schedules {
		s.syncReminder(schedule)
	}
}

func (s *Service) cancelReminder(scheduleID string) {
	if err := s.reminder.CancelReminder(scheduleID); err != nil {
		log.Printf("[Tracker] failed to cancel reminder for %s: %v", scheduleID, err)
	}
}

// AddSchedule validates and stores a new schedule, generating its lookahead
// occurrences. A schedule without an id gets a random one.
func (s *Service) AddSchedule(ctx context.Context, schedule *medication.Schedule) (*medication.Schedule, error) {
	added := *schedule
	if added.ID == "" {
		added.ID = uuid.NewString()
	}

	if err := added.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	added.CreatedAt = now
	added.UpdatedAt = now

	if err := s.store.PutSchedule(ctx, &added); err != nil {
		return nil, fmt.Errorf("failed to store schedule %s: %w", added.ID, err)
	}

	if err := s.ensureLookahead(ctx, &added); err != nil {
		return nil, err
	}

	s.syncReminder(&added)

	pushed := added
	s.push(scheduleKey(added.ID), "add schedule "+added.ID, func(ctx context.Context, remote Remote) error {
		return remote.AddSchedule(ctx, &pushed)
	})

	return &added, nil
}

// UpdateSchedule replaces an existing schedule. Occurrences already generated
// keep the name, dosage and time they were created with.
func (s *Service) UpdateSchedule(ctx context.Context, schedule *medication.Schedule) (*medication.Schedule, error) {
	existing, err := s.store.GetSchedule(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}

	updated := *schedule
	if err = updated.Validate(); err != nil {
		return nil, err
	}

	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()

	return s.saveSchedule(ctx, &updated)
}

// ToggleSchedule flips whether a schedule generates occurrences
func (s *Service) ToggleSchedule(ctx context.Context, id string) (*medication.Schedule, error) {
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule.IsActive = !schedule.IsActive
	schedule.UpdatedAt = s.now()

	return s.saveSchedule(ctx, schedule)
}

func (s *Service) saveSchedule(ctx context.Context, schedule *medication.Schedule) (*medication.Schedule, error) {
	if err := s.store.PutSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to store schedule %s: %w", schedule.ID, err)
	}

	if err := s.ensureLookahead(ctx, schedule); err != nil {
		return nil, err
	}

	s.syncReminder(schedule)

	pushed := *schedule
	s.push(scheduleKey(schedule.ID), "update schedule "+schedule.ID, func(ctx context.Context, remote Remote) error {
		return remote.UpdateSchedule(ctx, &pushed)
	})

	return schedule, nil
}

// DeleteSchedule removes a schedule with every occurrence it generated and
// returns how many occurrences went with it
func (s *Service) DeleteSchedule(ctx context.Context, id string) (int, error) {
	if _, err := s.store.GetSchedule(ctx, id); err != nil {
		return 0, err
	}

	count, err := s.store.DeleteOccurrencesBySchedule(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete occurrences of schedule %s: %w", id, err)
	}

	if err = s.store.DeleteSchedule(ctx, id); err != nil {
		return count, err
	}

	s.cancelReminder(id)

	s.push(scheduleKey(id), "delete schedule "+id, func(ctx context.Context, remote Remote) error {
		return remote.DeleteSchedule(ctx, id)
	})

	return count, nil
}

// Schedule by id from the local store
func (s *Service) Schedule(ctx context.Context, id string) (*medication.Schedule, error) {
	return s.store.GetSchedule(ctx, id)
}

// LoadSchedules returns the local schedules. When a remote is configured the
// returned channel receives the local set again once the remote one has
// replaced it; it is closed without a value if the refresh fails or ctx ends
// first.
func (s *Service) LoadSchedules(ctx context.Context) ([]*medication.Schedule, <-chan []*medication.Schedule, error) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	medication.SortSchedules(schedules)

	refreshed := make(chan []*medication.Schedule, 1)
	if s.remote == nil {
		close(refreshed)
		return schedules, refreshed, nil
	}

	go func() {
		defer close(refreshed)

		fresh, err := s.refreshSchedules(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[Sync] failed to refresh schedules: %v", err)
			}

			return
		}

		if ctx.Err() == nil {
			refreshed <- fresh
		}
	}()

	return schedules, refreshed, nil
}

// refreshSchedules replaces the local schedule set with the remote one and
// returns the result. Schedules missing remotely are dropped locally with
// their occurrences. A schedule with a change the remote has not accepted
// yet keeps its local state.
func (s *Service) refreshSchedules(ctx context.Context) ([]*medication.Schedule, error) {
	mark := s.pushes.mark()

	fresh, err := s.remote.FetchSchedules(ctx)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	local, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	keep := make(map[string]bool, len(fresh))
	for _, schedule := range fresh {
		keep[schedule.ID] = true
	}

	known := make(map[string]*medication.Schedule, len(local))
	for _, schedule := range local {
		if keep[schedule.ID] {
			known[schedule.ID] = schedule
			continue
		}

		if s.pushes.dirty(mark, scheduleKey(schedule.ID)) {
			continue
		}

		if _, err = s.store.DeleteOccurrencesBySchedule(ctx, schedule.ID); err != nil {
			return nil, fmt.Errorf("failed to drop occurrences of schedule %s: %w", schedule.ID, err)
		}

		if err = s.store.DeleteSchedule(ctx, schedule.ID); err != nil && !medication.IsNotFound(err) {
			return nil, fmt.Errorf("failed to drop schedule %s: %w", schedule.ID, err)
		}

		s.cancelReminder(schedule.ID)
	}

	for _, schedule := range fresh {
		if s.pushes.dirty(mark, scheduleKey(schedule.ID)) {
			continue
		}

		// the remote does not carry bookkeeping timestamps
		if existing, ok := known[schedule.ID]; ok {
			schedule.CreatedAt = existing.CreatedAt
			schedule.UpdatedAt = existing.UpdatedAt
		}

		if err = s.store.PutSchedule(ctx, schedule); err != nil {
			return nil, fmt.Errorf("failed to store schedule %s: %w", schedule.ID, err)
		}
	}

	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	s.syncReminders(schedules)

	// the remote answered, so parked pushes get another chance
	s.pushes.retryParked()

	return schedules, nil
}

// SyncReminders schedules a reminder for every local schedule
func (s *Service) SyncReminders(ctx context.Context) error {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}

	s.syncReminders(schedules)

	return nil
}
