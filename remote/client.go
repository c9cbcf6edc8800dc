// Package remote talks to the remote schedule and occurrence store over its
// JSON HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"git.0xdad.com/tblyler/medtaker/wire"
)

// StatusError is returned when the remote answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote API error: status %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("remote API error: status %d", e.StatusCode)
}

// Client for the remote API
type Client struct {
	httpClient *http.Client
	baseURL    string
	loc        *time.Location
	token      string
}

// NewClient for the API rooted at baseURL. Dates read from the remote are
// anchored in loc.
func NewClient(baseURL string, loc *time.Location) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		loc:     loc,
	}
}

// WithToken sends token as a bearer Authorization header
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

func (c *Client) call(ctx context.Context, method, endpoint string, body interface{}) (*wire.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	result := &wire.Response{}
	decodeErr := json.NewDecoder(resp.Body).Decode(result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			statusErr.Message = result.Error
		}

		return nil, statusErr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode %s %s response: %w", method, endpoint, decodeErr)
	}

	return result, nil
}

// FetchSchedules returns every remote schedule. Records that cannot be parsed
// are skipped.
func (c *Client) FetchSchedules(ctx context.Context) ([]*medication.Schedule, error) {
	result, err := c.call(ctx, http.MethodGet, "/schedules", nil)
	if err != nil {
		return nil, err
	}

	schedules := make([]*medication.Schedule, 0, len(result.Schedules))
	for _, record := range result.Schedules {
		schedule, err := record.ToSchedule(c.loc)
		if err != nil {
			log.Printf("[Remote] skipping schedule %s: %v", record.ID, err)
			continue
		}

		schedules = append(schedules, schedule)
	}

	medication.SortSchedules(schedules)

	return schedules, nil
}

// AddSchedule creates a schedule remotely
func (c *Client) AddSchedule(ctx context.Context, schedule *medication.Schedule) error {
	_, err := c.call(ctx, http.MethodPost, "/schedules", wire.FromSchedule(schedule))
	return err
}

// UpdateSchedule replaces a remote schedule
func (c *Client) UpdateSchedule(ctx context.Context, schedule *medication.Schedule) error {
	_, err := c.call(ctx, http.MethodPut, "/schedules/"+url.PathEscape(schedule.ID), wire.FromSchedule(schedule))
	return err
}

// DeleteSchedule removes a remote schedule
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	_, err := c.call(ctx, http.MethodDelete, "/schedules/"+url.PathEscape(id), nil)
	return err
}

// FetchOccurrences dated from through to inclusive
func (c *Client) FetchOccurrences(ctx context.Context, from, to time.Time) ([]*medication.Occurrence, error) {
	query := url.Values{}
	if datetime.SameDay(from, to) {
		query.Set("date", datetime.FormatDate(from))
	} else {
		query.Set("startDate", datetime.FormatDate(from))
		query.Set("endDate", datetime.FormatDate(to))
	}

	result, err := c.call(ctx, http.MethodGet, "/daily-medications?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	occurrences := make([]*medication.Occurrence, 0, len(result.Medications))
	for _, record := range result.Medications {
		occurrence, err := record.ToOccurrence(c.loc)
		if err != nil {
			log.Printf("[Remote] skipping occurrence %s: %v", record.ID, err)
			continue
		}

		occurrences = append(occurrences, occurrence)
	}

	return occurrences, nil
}

// UpdateOccurrence writes an occurrence remotely, creating it when the remote
// has not materialized it yet
func (c *Client) UpdateOccurrence(ctx context.Context, occurrence *medication.Occurrence) error {
	_, err := c.call(ctx, http.MethodPut, "/daily-medications/"+url.PathEscape(occurrence.ID), wire.FromOccurrence(occurrence))
	return err
}

// DeleteOccurrence removes a remote occurrence
func (c *Client) DeleteOccurrence(ctx context.Context, id string) error {
	_, err := c.call(ctx, http.MethodDelete, "/daily-medications/"+url.PathEscape(id), nil)
	return err
}

// ResetOccurrences deletes every remote occurrence
func (c *Client) ResetOccurrences(ctx context.Context) (int, error) {
	result, err := c.call(ctx, http.MethodPost, "/daily-medications/reset", nil)
	if err != nil {
		return 0, err
	}

	if result.DeletedCount == nil {
		return 0, nil
	}

	return *result.DeletedCount, nil
}
