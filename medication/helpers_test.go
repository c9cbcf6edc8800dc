package medication_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
)

var zone = time.FixedZone("UTC+8", 8*60*60)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, zone)
}

func at(year int, month time.Month, d, hour, minute int) time.Time {
	return time.Date(year, month, d, hour, minute, 0, 0, zone)
}

func daily(id string, start time.Time) *medication.Schedule {
	return &medication.Schedule{
		ID:        id,
		Name:      "Metformin " + id,
		Dosage:    "500mg",
		TimeOfDay: datetime.TimeOfDay{Hour: 9},
		Frequency: medication.Daily,
		StartDate: start,
		IsActive:  true,
	}
}

// memStore is a mutex-guarded Store for exercising the generator
type memStore struct {
	mu          sync.Mutex
	schedules   map[string]*medication.Schedule
	occurrences map[string]*medication.Occurrence
	creates     int
}

func newMemStore() *memStore {
	return &memStore{
		schedules:   make(map[string]*medication.Schedule),
		occurrences: make(map[string]*medication.Occurrence),
	}
}

func (m *memStore) ListSchedules(context.Context) ([]*medication.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*medication.Schedule
	for _, s := range m.schedules {
		copied := *s
		out = append(out, &copied)
	}
	medication.SortSchedules(out)

	return out, nil
}

func (m *memStore) GetSchedule(_ context.Context, id string) (*medication.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[id]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", id, medication.ErrNotFound)
	}
	copied := *s

	return &copied, nil
}

func (m *memStore) PutSchedule(_ context.Context, s *medication.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *s
	m.schedules[s.ID] = &copied

	return nil
}

func (m *memStore) DeleteSchedule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schedules[id]; !ok {
		return medication.ErrNotFound
	}
	delete(m.schedules, id)

	return nil
}

func (m *memStore) ListOccurrences(_ context.Context, from, to time.Time) ([]*medication.Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*medication.Occurrence
	for _, o := range m.occurrences {
		if datetime.CompareDays(o.Date, from) >= 0 && datetime.CompareDays(o.Date, to) <= 0 {
			copied := *o
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (m *memStore) GetOccurrence(_ context.Context, scheduleID string, date time.Time) (*medication.Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.occurrences[medication.OccurrenceID(scheduleID, date)]
	if !ok {
		return nil, medication.ErrNotFound
	}
	copied := *o

	return &copied, nil
}

func (m *memStore) CreateOccurrence(_ context.Context, o *medication.Occurrence) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.occurrences[o.ID]; ok {
		return false, nil
	}
	copied := *o
	m.occurrences[o.ID] = &copied
	m.creates++

	return true, nil
}

func (m *memStore) PutOccurrence(_ context.Context, o *medication.Occurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *o
	m.occurrences[o.ID] = &copied

	return nil
}

func (m *memStore) MarkMissed(_ context.Context, scheduleID string, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.occurrences[medication.OccurrenceID(scheduleID, date)]
	if !ok {
		return false, medication.ErrNotFound
	}

	if o.Status != medication.Upcoming {
		return false, nil
	}
	o.Status = medication.Missed

	return true, nil
}

func (m *memStore) DeleteOccurrence(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.occurrences, id)

	return nil
}

func (m *memStore) DeleteOccurrencesBySchedule(_ context.Context, scheduleID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, o := range m.occurrences {
		if o.ScheduleID == scheduleID {
			delete(m.occurrences, id)
			count++
		}
	}

	return count, nil
}

func (m *memStore) DeleteAllOccurrences(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.occurrences)
	m.occurrences = make(map[string]*medication.Occurrence)

	return count, nil
}
