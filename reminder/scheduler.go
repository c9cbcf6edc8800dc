// Package reminder fires a notification shortly before each scheduled dose.
package reminder

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"github.com/robfig/cron/v3"
)

// Title of every reminder message
const Title = "Medication reminder"

// CronSpec for a schedule's reminder firing leadMinutes before its time of
// day. ok is false when the schedule should have no reminder.
func CronSpec(schedule *medication.Schedule, leadMinutes int) (spec string, ok bool) {
	if !schedule.IsActive {
		return "", false
	}

	fire, shift := schedule.TimeOfDay.Add(-leadMinutes)

	switch schedule.Frequency {
	case medication.Daily:
		return fmt.Sprintf("%d %d * * *", fire.Minute, fire.Hour), true
	case medication.Weekly:
		weekdays := schedule.Weekdays()
		if len(weekdays) == 0 {
			return "", false
		}

		seen := map[int]bool{}
		days := make([]string, 0, len(weekdays))
		for _, weekday := range weekdays {
			day := ((weekday+shift)%7 + 7) % 7
			if seen[day] {
				continue
			}

			seen[day] = true
			days = append(days, strconv.Itoa(day))
		}

		return fmt.Sprintf("%d %d * * %s", fire.Minute, fire.Hour, strings.Join(days, ",")), true
	default:
		return "", false
	}
}

// Message body for a schedule's reminder
func Message(schedule *medication.Schedule) string {
	return schedule.Name + " - " + schedule.Dosage
}

// Scheduler keeps one cron entry per schedule with a reminder
type Scheduler struct {
	cron        *cron.Cron
	notifier    Notifier
	loc         *time.Location
	leadMinutes int
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler firing in loc leadMinutes before each dose
func NewScheduler(notifier Notifier, loc *time.Location, leadMinutes int) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		notifier:    notifier,
		loc:         loc,
		leadMinutes: leadMinutes,
		now:         time.Now,
		entries:     make(map[string]cron.EntryID),
	}
}

// Start firing reminders in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop firing reminders and wait for running ones to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// ScheduleReminder replaces the schedule's reminder. Inactive and custom
// schedules are left without one.
func (s *Scheduler) ScheduleReminder(schedule *medication.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(schedule.ID)

	spec, ok := CronSpec(schedule, s.leadMinutes)
	if !ok {
		return nil
	}

	snapshot := *schedule
	snapshot.ActiveWeekdays = schedule.Weekdays()

	id, err := s.cron.AddFunc(spec, func() {
		s.fire(&snapshot)
	})
	if err != nil {
		return fmt.Errorf("failed to add reminder for schedule %s: %w", schedule.ID, err)
	}

	s.entries[schedule.ID] = id

	return nil
}

// CancelReminder removes the schedule's reminder if it has one
func (s *Scheduler) CancelReminder(scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(scheduleID)

	return nil
}

// Sync makes the reminders match schedules exactly
func (s *Scheduler) Sync(schedules []*medication.Schedule) error {
	keep := make(map[string]bool, len(schedules))
	for _, schedule := range schedules {
		keep[schedule.ID] = true
	}

	s.mu.Lock()
	for id := range s.entries {
		if !keep[id] {
			s.remove(id)
		}
	}
	s.mu.Unlock()

	for _, schedule := range schedules {
		if err := s.ScheduleReminder(schedule); err != nil {
			return err
		}
	}

	return nil
}

// Next fire time of the schedule's reminder
func (s *Scheduler) Next(scheduleID string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[scheduleID]
	s.mu.Unlock()

	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(id)
	if entry.Schedule == nil {
		return time.Time{}, false
	}

	return entry.Schedule.Next(s.now().In(s.loc)), true
}

// must hold s.mu
func (s *Scheduler) remove(scheduleID string) {
	if id, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(id)
		delete(s.entries, scheduleID)
	}
}

// fire notifies unless the dose the reminder leads up to falls outside the
// schedule's date range
func (s *Scheduler) fire(schedule *medication.Schedule) {
	now := s.now().In(s.loc)
	dose := datetime.StartOfDay(now)
	if _, shift := schedule.TimeOfDay.Add(-s.leadMinutes); shift != 0 {
		dose = datetime.AddDays(dose, -shift)
	}

	if !medication.ShouldGenerate(schedule, dose) {
		return
	}

	if err := s.notifier.Notify(Title, Message(schedule)); err != nil {
		log.Printf("[Reminder] failed to notify for schedule %s: %v", schedule.ID, err)
	}
}
