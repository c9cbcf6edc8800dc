package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"git.0xdad.com/tblyler/medtaker/remote"
	"git.0xdad.com/tblyler/medtaker/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taipei = time.FixedZone("UTC+8", 8*3600)

func respond(w http.ResponseWriter, status int, body wire.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestFetchSchedulesSkipsBadRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/schedules", r.URL.Path)
		respond(w, http.StatusOK, wire.Response{
			Success: true,
			Schedules: []wire.Schedule{
				{ID: "b", Name: "Metformin", Dosage: "500mg", ScheduledTime: "20:00", Frequency: "daily", StartDate: "2025-01-01"},
				{ID: "bad", Name: "Broken", Dosage: "1", ScheduledTime: "25:00", Frequency: "daily", StartDate: "2025-01-01"},
				{ID: "a", Name: "Aspirin", Dosage: "81mg", ScheduledTime: "08:00", Frequency: "weekly", ActiveDays: []int{1, 3}, StartDate: "2025-01-01"},
			},
		})
	}))
	defer server.Close()

	client := remote.NewClient(server.URL+"/api/", taipei)
	schedules, err := client.FetchSchedules(context.Background())
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, "a", schedules[0].ID)
	assert.Equal(t, "b", schedules[1].ID)
	assert.True(t, schedules[1].IsActive)
}

func TestAddScheduleSendsRecord(t *testing.T) {
	var got wire.Schedule
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/schedules", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respond(w, http.StatusCreated, wire.Response{Success: true, Schedule: &got})
	}))
	defer server.Close()

	schedule := &medication.Schedule{
		ID:        "s1",
		Name:      "Aspirin",
		Dosage:    "81mg",
		TimeOfDay: datetime.TimeOfDay{Hour: 8},
		Frequency: medication.Daily,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, taipei),
		IsActive:  true,
	}

	client := remote.NewClient(server.URL, taipei).WithToken("secret")
	require.NoError(t, client.AddSchedule(context.Background(), schedule))
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "08:00", got.ScheduledTime)
	assert.Equal(t, "2025-01-01", got.StartDate)
}

func TestStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusNotFound, wire.Response{Error: "schedule not found"})
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, taipei)
	err := client.DeleteSchedule(context.Background(), "missing")
	require.Error(t, err)

	var statusErr *remote.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "schedule not found", statusErr.Message)
}

func TestFetchOccurrencesQuery(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/daily-medications", r.URL.Path)
		queries = append(queries, r.URL.RawQuery)
		respond(w, http.StatusOK, wire.Response{
			Success: true,
			Medications: []wire.Occurrence{
				{ScheduleID: "s1", MedicationName: "Aspirin", Dosage: "81mg", ScheduledTime: "08:00", Date: "2025-01-06", Status: "late"},
				{ID: "x", ScheduleID: "s1", ScheduledTime: "08:00", Date: "2025-01-06", Status: "eaten"},
			},
		})
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, taipei)
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, taipei)

	occurrences, err := client.FetchOccurrences(context.Background(), day, day)
	require.NoError(t, err)
	require.Len(t, occurrences, 1)
	assert.Equal(t, "s1-2025-01-06", occurrences[0].ID)
	assert.Equal(t, medication.Late, occurrences[0].Status)
	assert.True(t, occurrences[0].ScheduledTime.Equal(time.Date(2025, 1, 6, 8, 0, 0, 0, taipei)))

	_, err = client.FetchOccurrences(context.Background(), day, day.AddDate(0, 0, 6))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"date=2025-01-06",
		"endDate=2025-01-12&startDate=2025-01-06",
	}, queries)
}

func TestUpdateOccurrence(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/daily-medications/s1-2025-01-06", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		respond(w, http.StatusOK, wire.Response{Success: true})
	}))
	defer server.Close()

	actual := time.Date(2025, 1, 6, 8, 20, 0, 0, taipei)
	occurrence := &medication.Occurrence{
		ID:            "s1-2025-01-06",
		ScheduleID:    "s1",
		ScheduledTime: time.Date(2025, 1, 6, 8, 0, 0, 0, taipei),
		Date:          time.Date(2025, 1, 6, 0, 0, 0, 0, taipei),
		Status:        medication.Late,
		ActualTime:    &actual,
	}

	client := remote.NewClient(server.URL, taipei)
	require.NoError(t, client.UpdateOccurrence(context.Background(), occurrence))

	record := wire.Occurrence{}
	require.NoError(t, json.Unmarshal(body, &record))
	require.NotNil(t, record.ActualTime)
	assert.Equal(t, "08:20", *record.ActualTime)
	assert.Equal(t, "late", record.Status)
}

func TestResetOccurrences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/daily-medications/reset", r.URL.Path)
		count := 7
		respond(w, http.StatusOK, wire.Response{Success: true, DeletedCount: &count})
	}))
	defer server.Close()

	count, err := remote.NewClient(server.URL, taipei).ResetOccurrences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, wire.Response{Success: true})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := remote.NewClient(server.URL, taipei).FetchSchedules(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
