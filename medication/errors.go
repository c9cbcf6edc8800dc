package medication

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound occurs when a schedule or occurrence does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidSchedule occurs when a schedule fails validation
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrInvalidTransition occurs when a status change is not allowed from
	// the occurrence's current status
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError names the schedule field that failed validation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schedule %s: %s", e.Field, e.Reason)
}

// Unwrap to ErrInvalidSchedule
func (e *ValidationError) Unwrap() error {
	return ErrInvalidSchedule
}

// IsNotFound reports whether err means a missing schedule or occurrence
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is caused by caller input
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidSchedule) || errors.Is(err, ErrInvalidTransition)
}
