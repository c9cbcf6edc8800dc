package tracker

import (
	"context"
	"fmt"
	"log"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
)

// DayView is one calendar day's occurrences and their statistics
type DayView struct {
	Date        time.Time
	Occurrences []*medication.Occurrence
	Statistics  medication.DailyStatistics
}

// MonthView is one month's occurrences summarized per day
type MonthView struct {
	First       time.Time
	Last        time.Time
	Occurrences []*medication.Occurrence
	Statistics  medication.MonthStatistics
}

// Color of date's calendar cell
func (m *MonthView) Color(date time.Time) medication.Color {
	return m.Statistics.Color(date)
}

// LoadDay answers from the local store, generating any missing occurrences
// and marking past Upcoming ones Missed. The channel receives the view again
// after remote copies have overwritten local ones. It closes without a value
// when there is no remote, the refresh fails, or ctx ends first.
func (s *Service) LoadDay(ctx context.Context, date time.Time) (*DayView, <-chan *DayView, error) {
	day := datetime.StartOfDay(date.In(s.loc))

	occurrences, err := s.localRange(ctx, day, day)
	if err != nil {
		return nil, nil, err
	}

	view := newDayView(day, occurrences)

	refreshed := make(chan *DayView, 1)
	if s.remote == nil {
		close(refreshed)
		return view, refreshed, nil
	}

	go func() {
		defer close(refreshed)

		occurrences, err := s.refreshRange(ctx, day, day)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[Sync] failed to refresh %s: %v", datetime.FormatDate(day), err)
			}

			return
		}

		if ctx.Err() == nil {
			refreshed <- newDayView(day, occurrences)
		}
	}()

	return view, refreshed, nil
}

// LoadMonth is LoadDay for every day of the month containing date
func (s *Service) LoadMonth(ctx context.Context, date time.Time) (*MonthView, <-chan *MonthView, error) {
	first, last := datetime.MonthRange(date.In(s.loc))

	occurrences, err := s.localRange(ctx, first, last)
	if err != nil {
		return nil, nil, err
	}

	view := newMonthView(first, last, occurrences)

	refreshed := make(chan *MonthView, 1)
	if s.remote == nil {
		close(refreshed)
		return view, refreshed, nil
	}

	go func() {
		defer close(refreshed)

		occurrences, err := s.refreshRange(ctx, first, last)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[Sync] failed to refresh %s: %v", first.Format(datetime.MonthLayout), err)
			}

			return
		}

		if ctx.Err() == nil {
			refreshed <- newMonthView(first, last, occurrences)
		}
	}()

	return view, refreshed, nil
}

func newDayView(day time.Time, occurrences []*medication.Occurrence) *DayView {
	return &DayView{
		Date:        day,
		Occurrences: occurrences,
		Statistics:  medication.Summarize(occurrences),
	}
}

func newMonthView(first, last time.Time, occurrences []*medication.Occurrence) *MonthView {
	return &MonthView{
		First:       first,
		Last:        last,
		Occurrences: occurrences,
		Statistics:  medication.SummarizeMonth(occurrences),
	}
}

// localRange generates, ages and lists the local occurrences of a range
func (s *Service) localRange(ctx context.Context, from, to time.Time) ([]*medication.Occurrence, error) {
	if _, err := s.generator.EnsureAll(ctx, from, to); err != nil {
		return nil, fmt.Errorf("failed to generate occurrences: %w", err)
	}

	occurrences, err := s.store.ListOccurrences(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}

	if _, err = s.generator.Age(ctx, occurrences, s.now().In(s.loc)); err != nil {
		return nil, err
	}

	medication.SortOccurrences(occurrences)

	return occurrences, nil
}

// refreshRange overwrites local occurrences with the remote copies of a range
// and lists the result. Local occurrences the remote does not have yet are
// kept, as are those with a change the remote has not accepted yet.
func (s *Service) refreshRange(ctx context.Context, from, to time.Time) ([]*medication.Occurrence, error) {
	mark := s.pushes.mark()

	fresh, err := s.remote.FetchOccurrences(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	for _, occurrence := range fresh {
		if datetime.CompareDays(occurrence.Date, from) < 0 || datetime.CompareDays(occurrence.Date, to) > 0 {
			continue
		}

		if s.pushes.dirty(mark, occurrenceKey(occurrence.ID), resetKey) {
			continue
		}

		if err = s.store.PutOccurrence(ctx, occurrence); err != nil {
			return nil, fmt.Errorf("failed to store occurrence %s: %w", occurrence.ID, err)
		}
	}

	s.pushes.retryParked()

	return s.localRange(ctx, from, to)
}
