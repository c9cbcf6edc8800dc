package config

import "time"

// Config for application setup
type Config interface {
	BadgerPath() (string, error)
	PushoverAPIToken() (string, error)
	PushoverUserKey() (string, error)
	PushoverDevice() string
	RemoteURL() (string, error)
	RemoteToken() string
	ListenAddr() string
	LookaheadDays() (int, error)
	ReminderLeadMinutes() (int, error)
	SweepCron() string
	Location() (*time.Location, error)
}
