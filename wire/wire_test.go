package wire

import (
	"encoding/json"
	"testing"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zone = time.FixedZone("UTC+8", 8*60*60)

func TestScheduleRecordJSON(t *testing.T) {
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, zone)
	s := &medication.Schedule{
		ID:             "abc",
		Name:           "Vitamin D",
		Dosage:         "1000 IU",
		TimeOfDay:      datetime.TimeOfDay{Hour: 7, Minute: 5},
		Frequency:      medication.Weekly,
		ActiveWeekdays: []int{5, 1},
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, zone),
		EndDate:        &end,
		IsActive:       true,
	}

	data, err := json.Marshal(FromSchedule(s))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "abc",
		"name": "Vitamin D",
		"dosage": "1000 IU",
		"scheduledTime": "07:05",
		"frequency": "weekly",
		"activeDays": [1, 5],
		"startDate": "2024-01-01",
		"endDate": "2024-02-29",
		"isActive": true
	}`, string(data))
}

func TestScheduleRecordParse(t *testing.T) {
	var record Schedule
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "abc",
		"name": "Vitamin D",
		"dosage": "1000 IU",
		"scheduledTime": "21:30",
		"frequency": "daily",
		"activeDays": null,
		"startDate": "2024-01-10",
		"endDate": null
	}`), &record))

	s, err := record.ToSchedule(zone)
	require.NoError(t, err)
	assert.Equal(t, datetime.TimeOfDay{Hour: 21, Minute: 30}, s.TimeOfDay)
	assert.Equal(t, medication.Daily, s.Frequency)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, zone), s.StartDate)
	assert.Nil(t, s.EndDate)
	assert.True(t, s.IsActive, "missing isActive defaults to active")
	assert.NoError(t, s.Validate())
}

func TestScheduleRecordRejectsUnknownFrequency(t *testing.T) {
	record := Schedule{ID: "x", ScheduledTime: "08:00", Frequency: "hourly", StartDate: "2024-01-01"}

	_, err := record.ToSchedule(zone)
	assert.ErrorIs(t, err, medication.ErrInvalidSchedule)

	record.Frequency = "daily"
	record.ScheduledTime = "8am"
	_, err = record.ToSchedule(zone)
	assert.ErrorIs(t, err, datetime.ErrInvalidTimeOfDay)
}

func TestOccurrenceRecordRebuildsTimestamps(t *testing.T) {
	actual := "09:20"
	notes := "after breakfast"
	record := Occurrence{
		ID:             "abc-2024-03-05",
		ScheduleID:     "abc",
		MedicationName: "Vitamin D",
		Dosage:         "1000 IU",
		ScheduledTime:  "09:00",
		Date:           "2024-03-05",
		Status:         "late",
		ActualTime:     &actual,
		Notes:          &notes,
	}

	o, err := record.ToOccurrence(zone)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, zone), o.Date)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, zone), o.ScheduledTime)
	require.NotNil(t, o.ActualTime)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 20, 0, 0, zone), *o.ActualTime)
	assert.Equal(t, medication.Late, o.Status)
	assert.Equal(t, notes, o.Notes)

	back := FromOccurrence(o)
	assert.Equal(t, record, back)
}

func TestOccurrenceRecordNulls(t *testing.T) {
	var record Occurrence
	require.NoError(t, json.Unmarshal([]byte(`{
		"scheduleId": "abc",
		"medicationName": "Vitamin D",
		"dosage": "1",
		"scheduledTime": "09:00",
		"date": "2024-03-05",
		"status": "upcoming",
		"actualTime": null,
		"notes": null
	}`), &record))

	o, err := record.ToOccurrence(zone)
	require.NoError(t, err)
	assert.Equal(t, "abc-2024-03-05", o.ID)
	assert.Nil(t, o.ActualTime)
	assert.Empty(t, o.Notes)

	data, err := json.Marshal(FromOccurrence(o))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"actualTime":null`)
	assert.Contains(t, string(data), `"status":"upcoming"`)

	record.Status = "done"
	_, err = record.ToOccurrence(zone)
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := FromOccurrence(&medication.Occurrence{
		ID:            "abc-2024-03-05",
		ScheduleID:    "abc",
		ScheduledTime: time.Date(2024, 3, 5, 9, 0, 0, 0, zone),
		Date:          time.Date(2024, 3, 5, 0, 0, 0, 0, zone),
		Status:        medication.Upcoming,
	})

	var merged Occurrence
	require.NoError(t, Merge(base, []byte(`{"status":"on-time","actualTime":"09:04"}`), &merged))

	assert.Equal(t, "on-time", merged.Status)
	require.NotNil(t, merged.ActualTime)
	assert.Equal(t, "09:04", *merged.ActualTime)
	assert.Equal(t, "2024-03-05", merged.Date)
	assert.Equal(t, "abc", merged.ScheduleID)

	assert.Error(t, Merge(base, []byte(`[1,2]`), &merged))
}
