package tracker

import (
	"context"
	"fmt"
	"time"

	"git.0xdad.com/tblyler/medtaker/medication"
)

// occurrence by id, materializing it from its schedule when the schedule has
// a dose that day but nothing was generated yet
func (s *Service) occurrence(ctx context.Context, id string) (*medication.Occurrence, error) {
	scheduleID, date, err := medication.ParseOccurrenceID(id, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, medication.ErrNotFound)
	}

	occurrence, err := s.store.GetOccurrence(ctx, scheduleID, date)
	if err == nil || !medication.IsNotFound(err) {
		return occurrence, err
	}

	schedule, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("occurrence %s: %w", id, err)
	}

	if !medication.ShouldGenerate(schedule, date) {
		return nil, fmt.Errorf("occurrence %s: %w", id, medication.ErrNotFound)
	}

	occurrence = medication.NewOccurrence(schedule, date)
	if _, err = s.store.CreateOccurrence(ctx, occurrence); err != nil {
		return nil, fmt.Errorf("failed to create occurrence %s: %w", id, err)
	}

	// another writer may have won the create
	return s.store.GetOccurrence(ctx, scheduleID, date)
}

func (s *Service) saveOccurrence(ctx context.Context, occurrence *medication.Occurrence) (*medication.Occurrence, error) {
	if err := s.store.PutOccurrence(ctx, occurrence); err != nil {
		return nil, fmt.Errorf("failed to store occurrence %s: %w", occurrence.ID, err)
	}

	pushed := *occurrence
	s.push(occurrenceKey(occurrence.ID), "update occurrence "+occurrence.ID, func(ctx context.Context, remote Remote) error {
		return remote.UpdateOccurrence(ctx, &pushed)
	})

	return occurrence, nil
}

// Occurrence by id from the local store
func (s *Service) Occurrence(ctx context.Context, id string) (*medication.Occurrence, error) {
	return s.occurrence(ctx, id)
}

// LogIntake records that the dose was taken at actual, classifying it on
// time or late
func (s *Service) LogIntake(ctx context.Context, id string, actual time.Time, notes string) (*medication.Occurrence, error) {
	occurrence, err := s.occurrence(ctx, id)
	if err != nil {
		return nil, err
	}

	medication.LogIntake(occurrence, actual.In(s.loc), notes)

	return s.saveOccurrence(ctx, occurrence)
}

// MarkSkipped records that the dose was deliberately not taken
func (s *Service) MarkSkipped(ctx context.Context, id string) (*medication.Occurrence, error) {
	occurrence, err := s.occurrence(ctx, id)
	if err != nil {
		return nil, err
	}

	medication.MarkSkipped(occurrence)

	return s.saveOccurrence(ctx, occurrence)
}

// Cancel reverts an occurrence to Upcoming
func (s *Service) Cancel(ctx context.Context, id string) (*medication.Occurrence, error) {
	occurrence, err := s.occurrence(ctx, id)
	if err != nil {
		return nil, err
	}

	if err = medication.Cancel(occurrence); err != nil {
		return nil, err
	}

	return s.saveOccurrence(ctx, occurrence)
}

// DeleteOccurrence removes one occurrence. Viewing its day again generates a
// fresh Upcoming one if the schedule still has a dose that day.
func (s *Service) DeleteOccurrence(ctx context.Context, id string) error {
	if err := s.store.DeleteOccurrence(ctx, id); err != nil {
		return err
	}

	s.push(occurrenceKey(id), "delete occurrence "+id, func(ctx context.Context, remote Remote) error {
		return remote.DeleteOccurrence(ctx, id)
	})

	return nil
}

// ResetOccurrences deletes every occurrence and returns how many there were
// locally
func (s *Service) ResetOccurrences(ctx context.Context) (int, error) {
	count, err := s.store.DeleteAllOccurrences(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete occurrences: %w", err)
	}

	s.push(resetKey, "reset occurrences", func(ctx context.Context, remote Remote) error {
		_, err := remote.ResetOccurrences(ctx)
		return err
	})

	return count, nil
}
