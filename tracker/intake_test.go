package tracker

import (
	"context"
	"testing"
	"time"

	"git.0xdad.com/tblyler/medtaker/medication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogIntakeMaterializesOccurrence(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := &fakeRemote{}
	s := newTestService(t, store, WithRemote(remote), WithLookahead(0))

	added, err := s.AddSchedule(ctx, aspirin())
	require.NoError(t, err)

	id := medication.OccurrenceID(added.ID, day(3))
	logged, err := s.LogIntake(ctx, id, time.Date(2025, 1, 3, 8, 10, 0, 0, taipei), "late breakfast")
	require.NoError(t, err)
	assert.Equal(t, medication.OnTime, logged.Status)

	stored, err := store.GetOccurrence(ctx, added.ID, day(3))
	require.NoError(t, err)
	assert.Equal(t, medication.OnTime, stored.Status)
	assert.Equal(t, "late breakfast", stored.Notes)

	logged, err = s.LogIntake(ctx, id, time.Date(2025, 1, 3, 8, 16, 0, 0, taipei), "")
	require.NoError(t, err)
	assert.Equal(t, medication.Late, logged.Status)

	s.Close()
	assert.Equal(t, []string{
		"add " + added.ID,
		"update occurrence " + id + " on-time",
		"update occurrence " + id + " late",
	}, remote.Calls())
}

func TestOccurrenceNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := newTestService(t, store, WithLookahead(0))

	added, err := s.AddSchedule(ctx, aspirin())
	require.NoError(t, err)

	for _, id := range []string{
		"garbage",
		medication.OccurrenceID("unknown", day(8)),
		// before the schedule starts
		medication.OccurrenceID(added.ID, time.Date(2024, 12, 31, 0, 0, 0, 0, taipei)),
	} {
		_, err = s.MarkSkipped(ctx, id)
		assert.True(t, medication.IsNotFound(err), id)
	}
}

func TestSkipAndCancel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := newTestService(t, store)

	added, err := s.AddSchedule(ctx, aspirin())
	require.NoError(t, err)
	id := medication.OccurrenceID(added.ID, day(8))

	_, err = s.Cancel(ctx, id)
	assert.ErrorIs(t, err, medication.ErrInvalidTransition)

	_, err = s.LogIntake(ctx, id, time.Date(2025, 1, 8, 8, 0, 0, 0, taipei), "note")
	require.NoError(t, err)

	skipped, err := s.MarkSkipped(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, medication.Skipped, skipped.Status)
	assert.Nil(t, skipped.ActualTime)
	assert.Empty(t, skipped.Notes)

	cancelled, err := s.Cancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, medication.Upcoming, cancelled.Status)

	stored, err := s.Occurrence(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, medication.Upcoming, stored.Status)
}

func TestCancelMissed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := newTestService(t, store, WithLookahead(0))

	added, err := s.AddSchedule(ctx, aspirin())
	require.NoError(t, err)

	view, _, err := s.LoadDay(ctx, day(2))
	require.NoError(t, err)
	require.Len(t, view.Occurrences, 1)
	require.Equal(t, medication.Missed, view.Occurrences[0].Status)

	cancelled, err := s.Cancel(ctx, medication.OccurrenceID(added.ID, day(2)))
	require.NoError(t, err)
	assert.Equal(t, medication.Upcoming, cancelled.Status)
}

func TestDeleteAndResetOccurrences(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := &fakeRemote{}
	s := newTestService(t, store, WithRemote(remote))

	added, err := s.AddSchedule(ctx, aspirin())
	require.NoError(t, err)

	id := medication.OccurrenceID(added.ID, day(9))
	require.NoError(t, s.DeleteOccurrence(ctx, id))
	assert.True(t, medication.IsNotFound(s.DeleteOccurrence(ctx, id)))

	count, err := s.ResetOccurrences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	s.Close()
	assert.Equal(t, []string{"add " + added.ID, "delete occurrence " + id, "reset"}, remote.Calls())
}

func TestPushRetries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := &fakeRemote{failures: 2}
	s := newTestService(t, store, WithRemote(remote), WithLookahead(0))

	added, err := s.AddSchedule(ctx, aspirin())
	require.NoError(t, err)

	s.Close()
	assert.Equal(t, []string{"add " + added.ID, "add " + added.ID, "add " + added.ID}, remote.Calls())
}

func TestPushGivesUpWithoutTouchingLocal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := &fakeRemote{failures: 100}
	s := newTestService(t, store, WithRemote(remote), WithLookahead(0))

	added, err := s.AddSchedule(ctx, aspirin())
	require.NoError(t, err)

	s.Close()
	assert.Len(t, remote.Calls(), 3)

	stored, err := store.GetSchedule(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", stored.Name)

	// pushes after close are dropped
	_, err = s.ToggleSchedule(ctx, added.ID)
	require.NoError(t, err)
	assert.Len(t, remote.Calls(), 3)
}
