package entity

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound = errors.New("task not found")

	ErrEmptyTitle       = errors.New("title cannot be empty")
	ErrMissingTimeRange = errors.New("start and end time are required unless the task is full-day")
	ErrInvalidTime      = errors.New("time must be formatted as HH:MM")
)

// IsValidation reports whether err is one of the draft validation errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrMissingTimeRange) ||
		errors.Is(err, ErrInvalidTime)
}

// ValidationCode is the stable identifier returned to API clients.
func ValidationCode(err error) string {
	switch {
	case errors.Is(err, ErrEmptyTitle):
		return "empty_title"
	case errors.Is(err, ErrMissingTimeRange):
		return "missing_time_range"
	case errors.Is(err, ErrInvalidTime):
		return "invalid_time"
	default:
		return ""
	}
}

// WriteError reports a failed write against the task store.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s task: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
