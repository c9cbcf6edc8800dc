package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"github.com/robfig/cron/v3"
)

// AgingWindowDays is how far back a sweep looks for Upcoming occurrences
const AgingWindowDays = 90

// SweepJob keeps the generation horizon ahead of today and marks past
// Upcoming occurrences Missed
type SweepJob struct {
	store         medication.Store
	generator     *medication.Generator
	loc           *time.Location
	lookaheadDays int
}

// SweepResult counts what one sweep changed
type SweepResult struct {
	Generated int `json:"generated"`
	Missed    int `json:"missed"`
}

// NewSweepJob creates a new sweep job handler
func NewSweepJob(store medication.Store, loc *time.Location, lookaheadDays int) *SweepJob {
	return &SweepJob{
		store:         store,
		generator:     medication.NewGenerator(store),
		loc:           loc,
		lookaheadDays: lookaheadDays,
	}
}

// Process one sweep as of now
func (j *SweepJob) Process(ctx context.Context, now time.Time) (SweepResult, error) {
	result := SweepResult{}
	today := datetime.StartOfDay(now.In(j.loc))

	if j.lookaheadDays > 0 {
		created, err := j.generator.EnsureAll(ctx, today, datetime.AddDays(today, j.lookaheadDays-1))
		result.Generated = len(created)
		if err != nil {
			return result, fmt.Errorf("failed to generate occurrences: %w", err)
		}
	}

	occurrences, err := j.store.ListOccurrences(ctx, datetime.AddDays(today, -AgingWindowDays), datetime.AddDays(today, -1))
	if err != nil {
		return result, fmt.Errorf("failed to list past occurrences: %w", err)
	}

	aged, err := j.generator.Age(ctx, occurrences, today)
	result.Missed = len(aged)
	if err != nil {
		return result, err
	}

	return result, nil
}

// Register the job on c to run on spec
func (j *SweepJob) Register(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		j.Run(context.Background())
	})
	if err != nil {
		return 0, fmt.Errorf("failed to register sweep job on %q: %w", spec, err)
	}

	return id, nil
}

// Run one sweep now and log the outcome
func (j *SweepJob) Run(ctx context.Context) {
	log.Printf("[SweepJob] Starting sweep")

	result, err := j.Process(ctx, time.Now())
	if err != nil {
		log.Printf("[SweepJob] Error sweeping: %v", err)
		return
	}

	log.Printf("[SweepJob] Generated %d occurrences, marked %d missed", result.Generated, result.Missed)
}
