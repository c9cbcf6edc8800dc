package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// BadgerPathEnv name
	BadgerPathEnv = "BADGER_PATH"
	// PushoverAPITokenEnv name
	PushoverAPITokenEnv = "PUSHOVER_API_TOKEN"
	// PushoverUserKeyEnv name
	PushoverUserKeyEnv = "PUSHOVER_USER_KEY"
	// PushoverDeviceEnv name
	PushoverDeviceEnv = "PUSHOVER_DEVICE"
	// RemoteURLEnv name
	RemoteURLEnv = "REMOTE_URL"
	// RemoteTokenEnv name
	RemoteTokenEnv = "REMOTE_TOKEN"
	// ListenAddrEnv name
	ListenAddrEnv = "LISTEN_ADDR"
	// LookaheadDaysEnv name
	LookaheadDaysEnv = "LOOKAHEAD_DAYS"
	// ReminderLeadMinutesEnv name
	ReminderLeadMinutesEnv = "REMINDER_LEAD_MINUTES"
	// SweepCronEnv name
	SweepCronEnv = "SWEEP_CRON"
	// TimeZoneEnv name
	TimeZoneEnv = "TZ_NAME"
)

const (
	defaultListenAddr          = ":8080"
	defaultLookaheadDays       = 60
	defaultReminderLeadMinutes = 5
	defaultSweepCron           = "@hourly"
)

var (
	// ErrEnvVariableNotSet occurs when an environment variable is not set
	ErrEnvVariableNotSet = errors.New("environment variable is not set")
	// ErrInvalidEnvVariable occurs when an environment variable cannot be parsed
	ErrInvalidEnvVariable = errors.New("environment variable is invalid")
)

// LoadDotEnv reads filenames, or .env when none are given, into the
// environment. Variables already set are left alone and missing files are
// ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	for _, filename := range filenames {
		if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(filename); err != nil {
			return fmt.Errorf("failed to load %s: %w", filename, err)
		}
	}

	return nil
}

// Env variable Config implementation
type Env struct {
}

var _ Config = (*Env)(nil)

func required(name, description string) (string, error) {
	val, ok := os.LookupEnv(name)
	if !ok || val == "" {
		return "", fmt.Errorf(
			"unable to get %s from env variable %s: %w",
			description,
			name,
			ErrEnvVariableNotSet,
		)
	}

	return val, nil
}

func withDefault(name, fallback string) string {
	if val, ok := os.LookupEnv(name); ok && val != "" {
		return val
	}

	return fallback
}

func nonNegativeInt(name string, fallback int) (int, error) {
	val, ok := os.LookupEnv(name)
	if !ok || val == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("env variable %s=%q is not a non-negative integer: %w", name, val, ErrInvalidEnvVariable)
	}

	return n, nil
}

// BadgerPath for the database directory
func (e *Env) BadgerPath() (string, error) {
	return required(BadgerPathEnv, "badger path")
}

// PushoverAPIToken getter
func (e *Env) PushoverAPIToken() (string, error) {
	return required(PushoverAPITokenEnv, "pushover API token")
}

// PushoverUserKey getter
func (e *Env) PushoverUserKey() (string, error) {
	return required(PushoverUserKeyEnv, "pushover user key")
}

// PushoverDevice to send reminders to, empty for every device
func (e *Env) PushoverDevice() string {
	return os.Getenv(PushoverDeviceEnv)
}

// RemoteURL of the remote store
func (e *Env) RemoteURL() (string, error) {
	return required(RemoteURLEnv, "remote URL")
}

// RemoteToken sent as a bearer token to the remote store
func (e *Env) RemoteToken() string {
	return os.Getenv(RemoteTokenEnv)
}

// ListenAddr of the HTTP server
func (e *Env) ListenAddr() string {
	return withDefault(ListenAddrEnv, defaultListenAddr)
}

// LookaheadDays of occurrences generated ahead of today
func (e *Env) LookaheadDays() (int, error) {
	return nonNegativeInt(LookaheadDaysEnv, defaultLookaheadDays)
}

// ReminderLeadMinutes before a dose that its reminder fires
func (e *Env) ReminderLeadMinutes() (int, error) {
	return nonNegativeInt(ReminderLeadMinutesEnv, defaultReminderLeadMinutes)
}

// SweepCron schedule of the sweep job
func (e *Env) SweepCron() string {
	return withDefault(SweepCronEnv, defaultSweepCron)
}

// Location for calendar math, the process local zone when unset
func (e *Env) Location() (*time.Location, error) {
	name, ok := os.LookupEnv(TimeZoneEnv)
	if !ok || name == "" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("env variable %s=%q: %v: %w", TimeZoneEnv, name, err, ErrInvalidEnvVariable)
	}

	return loc, nil
}
