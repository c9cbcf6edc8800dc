package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"github.com/dgraph-io/badger"
)

// conflictRetries bounds how often a write is retried after badger reports a
// transaction conflict
const conflictRetries = 5

// Badger db implementation of medication.Store
type Badger struct {
	db       *badger.DB
	cancelGC func()
	wg       sync.WaitGroup
}

// NewBadger creates a new badger instance for the given path
func NewBadger(dbPath string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at path %s: %w", dbPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Badger{
		db:       db,
		cancelGC: cancel,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for b.db.RunValueLogGC(0.5) == nil && ctx.Err() == nil {
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return b, nil
}

// Close the database
func (b *Badger) Close() error {
	b.cancelGC()
	b.wg.Wait()

	return b.db.Close()
}

// update runs fn in a read-write transaction, retrying on conflicts
func (b *Badger) update(fn func(tx *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}

	return err
}

// ListSchedules from the database
func (b *Badger) ListSchedules(_ context.Context) (schedules []*medication.Schedule, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = schedulePrefix

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			err := item.Value(func(val []byte) error {
				schedule := &medication.Schedule{}
				err := json.Unmarshal(val, schedule)
				if err != nil {
					return fmt.Errorf("failed to unmarshal schedule value for schedule key %s: %w", string(item.Key()), err)
				}

				schedules = append(schedules, schedule)

				return nil
			})

			if err != nil {
				return err
			}
		}

		return nil
	})

	medication.SortSchedules(schedules)

	return
}

// GetSchedule from the database
func (b *Badger) GetSchedule(_ context.Context, id string) (schedule *medication.Schedule, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(badgerKeyForSchedule(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("schedule %s: %w", id, medication.ErrNotFound)
		}

		if err != nil {
			return fmt.Errorf("failed to get schedule value for id %s: %w", id, err)
		}

		schedule = &medication.Schedule{}

		return item.Value(func(val []byte) error {
			err = json.Unmarshal(val, schedule)
			if err != nil {
				return fmt.Errorf("failed to unmarshal schedule value for id %s: %w", id, err)
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return schedule, nil
}

// PutSchedule inserts or replaces a schedule
func (b *Badger) PutSchedule(_ context.Context, schedule *medication.Schedule) error {
	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("failed to JSON marshal schedule: %w", err)
	}

	return b.update(func(tx *badger.Txn) error {
		return tx.Set(badgerKeyForSchedule(schedule.ID), data)
	})
}

// DeleteSchedule from the database. Its occurrences are left in place.
func (b *Badger) DeleteSchedule(_ context.Context, id string) error {
	return b.update(func(tx *badger.Txn) error {
		key := badgerKeyForSchedule(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("schedule %s: %w", id, medication.ErrNotFound)
			}

			return fmt.Errorf("failed to get schedule %s: %w", id, err)
		}

		return tx.Delete(key)
	})
}

// ListOccurrences dated from through to inclusive, ordered by date then
// scheduled time
func (b *Badger) ListOccurrences(_ context.Context, from, to time.Time) (occurrences []*medication.Occurrence, err error) {
	if datetime.CompareDays(from, to) > 0 {
		return nil, nil
	}

	lastDate := datetime.FormatDate(to)

	err = b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = occurrencePrefix

		it := tx.NewIterator(opts)
		defer it.Close()

		var day []*medication.Occurrence
		currentDate := ""

		for it.Seek(badgerPrefixKeyForOccurrenceDate(datetime.FormatDate(from))); it.Valid(); it.Next() {
			item := it.Item()

			key := item.Key()
			date := string(key[len(occurrencePrefix) : len(occurrencePrefix)+len(datetime.DateLayout)])
			if date > lastDate {
				break
			}

			if date != currentDate {
				medication.SortOccurrences(day)
				occurrences = append(occurrences, day...)
				day = nil
				currentDate = date
			}

			err := item.Value(func(val []byte) error {
				occurrence := &medication.Occurrence{}
				err := json.Unmarshal(val, occurrence)
				if err != nil {
					return fmt.Errorf("failed to unmarshal occurrence value for occurrence key %s: %w", string(key), err)
				}

				day = append(day, occurrence)

				return nil
			})

			if err != nil {
				return err
			}
		}

		medication.SortOccurrences(day)
		occurrences = append(occurrences, day...)

		return nil
	})

	return
}

// GetOccurrence of a schedule on a date
func (b *Badger) GetOccurrence(_ context.Context, scheduleID string, date time.Time) (occurrence *medication.Occurrence, err error) {
	key := badgerKeyForOccurrence(datetime.FormatDate(date), scheduleID)

	err = b.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("occurrence %s: %w", medication.OccurrenceID(scheduleID, date), medication.ErrNotFound)
		}

		if err != nil {
			return fmt.Errorf("failed to get occurrence value for key %s: %w", string(key), err)
		}

		occurrence = &medication.Occurrence{}

		return item.Value(func(val []byte) error {
			err = json.Unmarshal(val, occurrence)
			if err != nil {
				return fmt.Errorf("failed to unmarshal occurrence value for key %s: %w", string(key), err)
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return occurrence, nil
}

// CreateOccurrence writes occurrence only when its key is free. Badger's
// conflict detection aborts a concurrent writer that read the same missing
// key, and the retry then sees the committed occurrence.
func (b *Badger) CreateOccurrence(_ context.Context, occurrence *medication.Occurrence) (created bool, err error) {
	data, err := json.Marshal(occurrence)
	if err != nil {
		return false, fmt.Errorf("failed to JSON marshal occurrence: %w", err)
	}

	primary, index := occurrenceKeys(occurrence)

	err = b.update(func(tx *badger.Txn) error {
		created = false

		_, err := tx.Get(primary)
		if err == nil {
			return nil
		}

		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check occurrence %s: %w", occurrence.ID, err)
		}

		if err = tx.Set(primary, data); err != nil {
			return err
		}

		if err = tx.Set(index, nil); err != nil {
			return err
		}

		created = true

		return nil
	})

	if err != nil {
		return false, err
	}

	return created, nil
}

// PutOccurrence inserts or replaces an occurrence
func (b *Badger) PutOccurrence(_ context.Context, occurrence *medication.Occurrence) error {
	data, err := json.Marshal(occurrence)
	if err != nil {
		return fmt.Errorf("failed to JSON marshal occurrence: %w", err)
	}

	primary, index := occurrenceKeys(occurrence)

	return b.update(func(tx *badger.Txn) error {
		if err := tx.Set(primary, data); err != nil {
			return err
		}

		return tx.Set(index, nil)
	})
}

// MarkMissed flips a stored occurrence from Upcoming to Missed in one
// transaction. A write that lands between the read and the commit makes
// badger abort it, and the retry sees the newer status.
func (b *Badger) MarkMissed(_ context.Context, scheduleID string, date time.Time) (marked bool, err error) {
	key := badgerKeyForOccurrence(datetime.FormatDate(date), scheduleID)

	err = b.update(func(tx *badger.Txn) error {
		marked = false

		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("occurrence %s: %w", medication.OccurrenceID(scheduleID, date), medication.ErrNotFound)
		}

		if err != nil {
			return fmt.Errorf("failed to get occurrence value for key %s: %w", string(key), err)
		}

		occurrence := &medication.Occurrence{}
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, occurrence)
		})
		if err != nil {
			return fmt.Errorf("failed to unmarshal occurrence value for key %s: %w", string(key), err)
		}

		if occurrence.Status != medication.Upcoming {
			return nil
		}

		occurrence.Status = medication.Missed

		data, err := json.Marshal(occurrence)
		if err != nil {
			return fmt.Errorf("failed to JSON marshal occurrence: %w", err)
		}

		if err = tx.Set(key, data); err != nil {
			return err
		}

		marked = true

		return nil
	})

	if err != nil {
		return false, err
	}

	return marked, nil
}

// DeleteOccurrence by id
func (b *Badger) DeleteOccurrence(_ context.Context, id string) error {
	primary, index, err := occurrenceKeysForID(id)
	if err != nil {
		// a malformed id names no stored occurrence
		return fmt.Errorf("%v: %w", err, medication.ErrNotFound)
	}

	return b.update(func(tx *badger.Txn) error {
		if _, err := tx.Get(primary); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("occurrence %s: %w", id, medication.ErrNotFound)
			}

			return fmt.Errorf("failed to get occurrence %s: %w", id, err)
		}

		if err := tx.Delete(primary); err != nil {
			return err
		}

		return tx.Delete(index)
	})
}

// DeleteOccurrencesBySchedule removes every occurrence of a schedule
func (b *Badger) DeleteOccurrencesBySchedule(_ context.Context, scheduleID string) (count int, err error) {
	prefix := badgerPrefixKeyForScheduleOccurrences(scheduleID)

	err = b.update(func(tx *badger.Txn) error {
		count = 0

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		var dates []string

		it := tx.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			dates = append(dates, string(it.Item().Key()[len(prefix):]))
		}
		it.Close()

		for _, date := range dates {
			if err := tx.Delete(badgerKeyForOccurrence(date, scheduleID)); err != nil {
				return err
			}

			if err := tx.Delete(badgerKeyForScheduleOccurrence(scheduleID, date)); err != nil {
				return err
			}

			count++
		}

		return nil
	})

	return
}

// DeleteAllOccurrences removes every occurrence and its index entries
func (b *Badger) DeleteAllOccurrences(_ context.Context) (count int, err error) {
	err = b.update(func(tx *badger.Txn) error {
		count = 0

		var keys [][]byte
		for _, prefix := range [][]byte{occurrencePrefix, scheduleOccurrencePrefix} {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false

			it := tx.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
				if bytes.Equal(prefix, occurrencePrefix) {
					count++
				}
			}
			it.Close()
		}

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})

	return
}
