package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"git.0xdad.com/tblyler/medtaker/wire"
	"github.com/go-chi/chi/v5"
)

// MaxRangeDays bounds a startDate/endDate query
const MaxRangeDays = 366

var errBadRequest = errors.New("bad request")

// Handler holds the dependencies of every route
type Handler struct {
	store         medication.Store
	generator     *medication.Generator
	reminder      medication.Reminder
	loc           *time.Location
	lookaheadDays int
	now           func() time.Time
}

// NewHandler over store with calendar math in loc
func NewHandler(store medication.Store, loc *time.Location) *Handler {
	return &Handler{
		store:     store,
		generator: medication.NewGenerator(store),
		reminder:  medication.NopReminder{},
		loc:       loc,
		now:       time.Now,
	}
}

// WithReminder keeps reminder in step with schedules changed through the API
func (h *Handler) WithReminder(reminder medication.Reminder) *Handler {
	h.reminder = reminder
	return h
}

// WithLookahead generates this many days of occurrences starting today
// whenever a schedule is created or updated
func (h *Handler) WithLookahead(days int) *Handler {
	h.lookaheadDays = days
	return h
}

// WithClock replaces the handler's source of the current time
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, resp wire.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[API] failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), medication.IsValidation(err):
		status = http.StatusBadRequest
	case medication.IsNotFound(err):
		status = http.StatusNotFound
	default:
		log.Printf("[API] %v", err)
	}

	writeJSON(w, status, wire.Response{Error: err.Error()})
}

// scheduleSaved generates the schedule's lookahead occurrences and updates
// its reminder
func (h *Handler) scheduleSaved(ctx context.Context, schedule *medication.Schedule) error {
	if h.lookaheadDays > 0 {
		today := datetime.StartOfDay(h.now().In(h.loc))
		if _, err := h.generator.Ensure(ctx, []*medication.Schedule{schedule}, today, datetime.AddDays(today, h.lookaheadDays-1)); err != nil {
			return fmt.Errorf("failed to generate occurrences for schedule %s: %w", schedule.ID, err)
		}
	}

	if err := h.reminder.ScheduleReminder(schedule); err != nil {
		log.Printf("[API] failed to schedule reminder for %s: %v", schedule.ID, err)
	}

	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, badRequest("failed to read body: %v", err)
	}

	return body, nil
}

// ListSchedules returns every schedule
// GET /schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.store.ListSchedules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	records := make([]wire.Schedule, 0, len(schedules))
	for _, schedule := range schedules {
		records = append(records, wire.FromSchedule(schedule))
	}

	writeJSON(w, http.StatusOK, wire.Response{Success: true, Schedules: records})
}

// CreateSchedule stores a new schedule
// POST /schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	record := wire.Schedule{}
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, badRequest("invalid request body: %v", err))
		return
	}

	schedule, err := record.ToSchedule(h.loc)
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}

	if err = schedule.Validate(); err != nil {
		writeError(w, err)
		return
	}

	now := h.now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if err = h.store.PutSchedule(r.Context(), schedule); err != nil {
		writeError(w, err)
		return
	}

	if err = h.scheduleSaved(r.Context(), schedule); err != nil {
		writeError(w, err)
		return
	}

	stored := wire.FromSchedule(schedule)
	writeJSON(w, http.StatusOK, wire.Response{Success: true, Schedule: &stored})
}

// UpdateSchedule merges the request body over an existing schedule
// PUT /schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.store.GetSchedule(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record := wire.Schedule{}
	if err = wire.Merge(wire.FromSchedule(existing), body, &record); err != nil {
		writeError(w, badRequest("%v", err))
		return
	}

	record.ID = id

	schedule, err := record.ToSchedule(h.loc)
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}

	if err = schedule.Validate(); err != nil {
		writeError(w, err)
		return
	}

	schedule.CreatedAt = existing.CreatedAt
	schedule.UpdatedAt = h.now()

	if err = h.store.PutSchedule(r.Context(), schedule); err != nil {
		writeError(w, err)
		return
	}

	if err = h.scheduleSaved(r.Context(), schedule); err != nil {
		writeError(w, err)
		return
	}

	stored := wire.FromSchedule(schedule)
	writeJSON(w, http.StatusOK, wire.Response{Success: true, Schedule: &stored})
}

// DeleteSchedule removes a schedule and every occurrence it generated
// DELETE /schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetSchedule(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	count, err := h.store.DeleteOccurrencesBySchedule(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err = h.store.DeleteSchedule(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	if err = h.reminder.CancelReminder(id); err != nil {
		log.Printf("[API] failed to cancel reminder for %s: %v", id, err)
	}

	writeJSON(w, http.StatusOK, wire.Response{Success: true, DeletedCount: &count})
}

func (h *Handler) queryRange(r *http.Request) (from, to time.Time, err error) {
	query := r.URL.Query()

	if date := query.Get("date"); date != "" {
		from, err = datetime.ParseDate(date, h.loc)
		if err != nil {
			return from, to, badRequest("%v", err)
		}

		return from, from, nil
	}

	start, end := query.Get("startDate"), query.Get("endDate")
	if start == "" || end == "" {
		return from, to, badRequest("date or startDate and endDate are required")
	}

	if from, err = datetime.ParseDate(start, h.loc); err != nil {
		return from, to, badRequest("%v", err)
	}

	if to, err = datetime.ParseDate(end, h.loc); err != nil {
		return from, to, badRequest("%v", err)
	}

	if datetime.CompareDays(from, to) > 0 {
		return from, to, badRequest("startDate %s is after endDate %s", start, end)
	}

	if len(datetime.DaysBetween(from, to)) > MaxRangeDays {
		return from, to, badRequest("range exceeds %d days", MaxRangeDays)
	}

	return from, to, nil
}

// ListOccurrences returns the occurrences of a day or a date range,
// materializing missing ones and marking past Upcoming ones Missed
// GET /daily-medications?date=YYYY-MM-DD
// GET /daily-medications?startDate=YYYY-MM-DD&endDate=YYYY-MM-DD
func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, to, err := h.queryRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err = h.generator.EnsureAll(ctx, from, to); err != nil {
		writeError(w, err)
		return
	}

	occurrences, err := h.store.ListOccurrences(ctx, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err = h.generator.Age(ctx, occurrences, h.now().In(h.loc)); err != nil {
		writeError(w, err)
		return
	}

	records := make([]wire.Occurrence, 0, len(occurrences))
	for _, occurrence := range occurrences {
		records = append(records, wire.FromOccurrence(occurrence))
	}

	writeJSON(w, http.StatusOK, wire.Response{Success: true, Medications: records})
}

// UpdateOccurrence merges the request body over an occurrence. An occurrence
// not materialized yet is first rebuilt from the schedule named in its id.
// PUT /daily-medications/{id}
func (h *Handler) UpdateOccurrence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	scheduleID, date, err := medication.ParseOccurrenceID(id, h.loc)
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}

	existing, err := h.store.GetOccurrence(ctx, scheduleID, date)
	if medication.IsNotFound(err) {
		var schedule *medication.Schedule
		schedule, err = h.store.GetSchedule(ctx, scheduleID)
		if err == nil {
			existing = medication.NewOccurrence(schedule, date)
		}
	}

	if err != nil {
		writeError(w, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record := wire.Occurrence{}
	if err = wire.Merge(wire.FromOccurrence(existing), body, &record); err != nil {
		writeError(w, badRequest("%v", err))
		return
	}

	record.ID = id
	record.ScheduleID = scheduleID
	record.Date = datetime.FormatDate(date)

	occurrence, err := record.ToOccurrence(h.loc)
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}

	if err = h.store.PutOccurrence(ctx, occurrence); err != nil {
		writeError(w, err)
		return
	}

	stored := wire.FromOccurrence(occurrence)
	writeJSON(w, http.StatusOK, wire.Response{Success: true, Medication: &stored})
}

// DeleteOccurrence removes one occurrence
// DELETE /daily-medications/{id}
func (h *Handler) DeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteOccurrence(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.Response{Success: true})
}

// ResetOccurrences deletes every occurrence
// POST /daily-medications/reset
func (h *Handler) ResetOccurrences(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.DeleteAllOccurrences(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("[API] reset %d daily medication records", count)

	writeJSON(w, http.StatusOK, wire.Response{Success: true, DeletedCount: &count})
}
