package db

import (
	"strconv"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
)

var (
	schedulePrefix           = []byte("schedule:")
	occurrencePrefix         = []byte("occurrence:")
	scheduleOccurrencePrefix = []byte("schedule_occurrence:")
)

func badgerKeyForSchedule(id string) []byte {
	return append(append([]byte{}, schedulePrefix...), id...)
}

// occurrences are keyed date first so a date range is one ordered scan
func badgerKeyForOccurrence(date string, scheduleID string) []byte {
	key := append(append([]byte{}, occurrencePrefix...), date...)
	key = append(key, ':')

	return append(key, scheduleID...)
}

func badgerPrefixKeyForOccurrenceDate(date string) []byte {
	return append(append(append([]byte{}, occurrencePrefix...), date...), ':')
}

// the schedule index lets a cascade delete find a schedule's occurrences
// without scanning every date
func badgerKeyForScheduleOccurrence(scheduleID string, date string) []byte {
	key := badgerPrefixKeyForScheduleOccurrences(scheduleID)
	return append(key, date...)
}

// the id is length prefixed so that no schedule's prefix is also the prefix
// of another schedule whose id extends it, like "a" and "a:b"
func badgerPrefixKeyForScheduleOccurrences(scheduleID string) []byte {
	key := append([]byte{}, scheduleOccurrencePrefix...)
	key = strconv.AppendInt(key, int64(len(scheduleID)), 10)
	key = append(key, ':')
	key = append(key, scheduleID...)

	return append(key, ':')
}

func occurrenceKeys(o *medication.Occurrence) (primary, index []byte) {
	date := datetime.FormatDate(o.Date)
	return badgerKeyForOccurrence(date, o.ScheduleID), badgerKeyForScheduleOccurrence(o.ScheduleID, date)
}

func occurrenceKeysForID(id string) (primary, index []byte, err error) {
	scheduleID, date, err := medication.ParseOccurrenceID(id, time.UTC)
	if err != nil {
		return nil, nil, err
	}

	dateKey := datetime.FormatDate(date)

	return badgerKeyForOccurrence(dateKey, scheduleID), badgerKeyForScheduleOccurrence(scheduleID, dateKey), nil
}
