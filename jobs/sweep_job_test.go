package jobs

import (
	"context"
	"testing"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/db"
	"git.0xdad.com/tblyler/medtaker/medication"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taipei = time.FixedZone("UTC+8", 8*3600)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, taipei)
}

func newTestStore(t *testing.T) *db.Badger {
	t.Helper()

	store, err := db.NewBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	schedule := &medication.Schedule{
		ID:        "s1",
		Name:      "Aspirin",
		Dosage:    "81mg",
		TimeOfDay: datetime.TimeOfDay{Hour: 8},
		Frequency: medication.Daily,
		StartDate: day(1),
		IsActive:  true,
	}
	require.NoError(t, store.PutSchedule(ctx, schedule))

	past := medication.NewOccurrence(schedule, day(5))
	_, err := store.CreateOccurrence(ctx, past)
	require.NoError(t, err)

	logged := medication.NewOccurrence(schedule, day(6))
	medication.LogIntake(logged, time.Date(2025, 1, 6, 8, 0, 0, 0, taipei), "")
	_, err = store.CreateOccurrence(ctx, logged)
	require.NoError(t, err)

	job := NewSweepJob(store, taipei, 5)
	now := time.Date(2025, 1, 8, 23, 0, 0, 0, taipei)

	result, err := job.Process(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Generated: 5, Missed: 1}, result)

	stored, err := store.GetOccurrence(ctx, "s1", day(5))
	require.NoError(t, err)
	assert.Equal(t, medication.Missed, stored.Status)

	stored, err = store.GetOccurrence(ctx, "s1", day(6))
	require.NoError(t, err)
	assert.Equal(t, medication.OnTime, stored.Status)

	// today is never aged
	stored, err = store.GetOccurrence(ctx, "s1", day(8))
	require.NoError(t, err)
	assert.Equal(t, medication.Upcoming, stored.Status)

	result, err = job.Process(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
}

func TestProcessCancelled(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutSchedule(context.Background(), &medication.Schedule{
		ID:        "s1",
		Name:      "Aspirin",
		Dosage:    "81mg",
		Frequency: medication.Daily,
		StartDate: day(1),
		IsActive:  true,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSweepJob(store, taipei, 5).Process(ctx, day(8))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegister(t *testing.T) {
	job := NewSweepJob(newTestStore(t), taipei, 5)
	c := cron.New(cron.WithLocation(taipei))

	_, err := job.Register(c, "@hourly")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = job.Register(c, "not a schedule")
	assert.Error(t, err)
}
