package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that's not in QUEUED status
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in QUEUED status")

	// ErrUnknownJobType is returned when no handler is registered for a job type
	ErrUnknownJobType = errors.New("no handler registered for job type")

	// ErrMaxAttemptsExceeded is returned when a job has exhausted its retry budget
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

	// ErrNotificationNotFound is returned when a notification ID is unknown
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrNotificationDismissed is returned when mutating a dismissed notification
	ErrNotificationDismissed = errors.New("notification already dismissed")
)

// RetryableError wraps transient failures that should trigger another
// delivery attempt in durable mode.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// ValidationError marks a job as malformed. Validation failures are routed
// straight to the dead-letter state and never retried.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(err error) error {
	return &ValidationError{Err: err}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRetryable reports whether err is an explicitly transient failure.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
