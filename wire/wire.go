// Package wire holds the JSON records exchanged with the remote store. Dates
// travel as YYYY-MM-DD and times of day as HH:mm with no zone; full
// timestamps are rebuilt by combining the two in the reader's location.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
)

// Schedule record
type Schedule struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Dosage        string  `json:"dosage"`
	ScheduledTime string  `json:"scheduledTime"`
	Frequency     string  `json:"frequency"`
	ActiveDays    []int   `json:"activeDays"`
	StartDate     string  `json:"startDate"`
	EndDate       *string `json:"endDate"`
	IsActive      *bool   `json:"isActive,omitempty"`
}

// Occurrence record, called a daily medication by the remote API
type Occurrence struct {
	ID             string  `json:"id"`
	ScheduleID     string  `json:"scheduleId"`
	MedicationName string  `json:"medicationName"`
	Dosage         string  `json:"dosage"`
	ScheduledTime  string  `json:"scheduledTime"`
	Date           string  `json:"date"`
	Status         string  `json:"status"`
	ActualTime     *string `json:"actualTime"`
	Notes          *string `json:"notes"`
}

// Response envelope of every remote endpoint
type Response struct {
	Success      bool         `json:"success"`
	Error        string       `json:"error,omitempty"`
	Schedules    []Schedule   `json:"schedules,omitempty"`
	Schedule     *Schedule    `json:"schedule,omitempty"`
	Medications  []Occurrence `json:"medications,omitempty"`
	Medication   *Occurrence  `json:"medication,omitempty"`
	DeletedCount *int         `json:"deletedCount,omitempty"`
}

// FromSchedule converts a schedule to its record
func FromSchedule(s *medication.Schedule) Schedule {
	active := s.IsActive
	record := Schedule{
		ID:            s.ID,
		Name:          s.Name,
		Dosage:        s.Dosage,
		ScheduledTime: s.TimeOfDay.String(),
		Frequency:     string(s.Frequency),
		StartDate:     datetime.FormatDate(s.StartDate),
		IsActive:      &active,
	}

	if len(s.ActiveWeekdays) > 0 {
		record.ActiveDays = s.Weekdays()
	}

	if s.EndDate != nil {
		end := datetime.FormatDate(*s.EndDate)
		record.EndDate = &end
	}

	return record
}

// ToSchedule parses the record into a schedule with dates at midnight in loc.
// A missing isActive means active.
func (r Schedule) ToSchedule(loc *time.Location) (*medication.Schedule, error) {
	tod, err := datetime.ParseTimeOfDay(r.ScheduledTime)
	if err != nil {
		return nil, fmt.Errorf("schedule %s scheduledTime: %w", r.ID, err)
	}

	frequency := medication.Frequency(r.Frequency)
	if !frequency.Valid() {
		return nil, fmt.Errorf("schedule %s: %w", r.ID, &medication.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", r.Frequency)})
	}

	start, err := datetime.ParseDate(r.StartDate, loc)
	if err != nil {
		return nil, fmt.Errorf("schedule %s startDate: %w", r.ID, err)
	}

	s := &medication.Schedule{
		ID:             r.ID,
		Name:           r.Name,
		Dosage:         r.Dosage,
		TimeOfDay:      tod,
		Frequency:      frequency,
		ActiveWeekdays: r.ActiveDays,
		StartDate:      start,
		IsActive:       r.IsActive == nil || *r.IsActive,
	}

	if r.EndDate != nil && *r.EndDate != "" {
		end, err := datetime.ParseDate(*r.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("schedule %s endDate: %w", r.ID, err)
		}

		s.EndDate = &end
	}

	return s, nil
}

// FromOccurrence converts an occurrence to its record
func FromOccurrence(o *medication.Occurrence) Occurrence {
	record := Occurrence{
		ID:             o.ID,
		ScheduleID:     o.ScheduleID,
		MedicationName: o.MedicationName,
		Dosage:         o.Dosage,
		ScheduledTime:  datetime.TimeOfDayOf(o.ScheduledTime).String(),
		Date:           datetime.FormatDate(o.Date),
		Status:         string(o.Status),
	}

	if o.ActualTime != nil {
		actual := datetime.TimeOfDayOf(*o.ActualTime).String()
		record.ActualTime = &actual
	}

	if o.Notes != "" {
		notes := o.Notes
		record.Notes = &notes
	}

	return record
}

// ToOccurrence parses the record, anchoring scheduledTime and actualTime on
// the record's date in loc
func (r Occurrence) ToOccurrence(loc *time.Location) (*medication.Occurrence, error) {
	date, err := datetime.ParseDate(r.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("occurrence %s date: %w", r.ID, err)
	}

	scheduled, err := datetime.ParseTimeOfDay(r.ScheduledTime)
	if err != nil {
		return nil, fmt.Errorf("occurrence %s scheduledTime: %w", r.ID, err)
	}

	status := medication.Status(r.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("occurrence %s has unknown status %q", r.ID, r.Status)
	}

	o := &medication.Occurrence{
		ID:             r.ID,
		ScheduleID:     r.ScheduleID,
		MedicationName: r.MedicationName,
		Dosage:         r.Dosage,
		ScheduledTime:  datetime.Combine(date, scheduled),
		Date:           date,
		Status:         status,
	}

	if o.ID == "" {
		o.ID = medication.OccurrenceID(r.ScheduleID, date)
	}

	if r.ActualTime != nil && *r.ActualTime != "" {
		actual, err := datetime.ParseTimeOfDay(*r.ActualTime)
		if err != nil {
			return nil, fmt.Errorf("occurrence %s actualTime: %w", r.ID, err)
		}

		at := datetime.Combine(date, actual)
		o.ActualTime = &at
	}

	if r.Notes != nil {
		o.Notes = *r.Notes
	}

	return o, nil
}

// Merge overlays the JSON object patch onto base and decodes the result into
// out. Fields absent from patch keep base's value.
func Merge(base interface{}, patch []byte, out interface{}) error {
	data, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("failed to marshal merge base: %w", err)
	}

	merged := map[string]json.RawMessage{}
	if err = json.Unmarshal(data, &merged); err != nil {
		return fmt.Errorf("failed to read merge base: %w", err)
	}

	overlay := map[string]json.RawMessage{}
	if err = json.Unmarshal(patch, &overlay); err != nil {
		return fmt.Errorf("failed to read patch: %w", err)
	}

	for key, value := range overlay {
		merged[key] = value
	}

	data, err = json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal merged value: %w", err)
	}

	return json.Unmarshal(data, out)
}
