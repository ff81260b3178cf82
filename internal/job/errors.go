package job

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a job record does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists is returned by a conditional create when a record
	// with the same job ID is already present. Callers treat this as a
	// lost first-writer race, not a failure.
	ErrAlreadyExists = errors.New("job already exists")

	// ErrInvalidTransition is returned when a status change would violate
	// the state machine, including any move out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMissingResult is returned when a completion carries no verdict.
	ErrMissingResult = errors.New("completed job requires a result")

	// ErrMissingJob is returned when a queue message references a job with
	// no record. Content is durably staged before a message is ever sent,
	// so this signals a data-consistency bug: it is non-retryable and must
	// be surfaced loudly, never silently dropped.
	ErrMissingJob = errors.New("queue message references missing job")
)

// ValidationError reports one or more caller-fixable problems with a
// submission request. It carries no side effects.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, ", ")
}

// NewValidationError builds a ValidationError from problem strings.
func NewValidationError(problems []string) error {
	return &ValidationError{Problems: problems}
}

// OriginFetchError reports a failure to retrieve source bytes from the
// submitted origin URL. No job or queue message exists when it is returned.
type OriginFetchError struct {
	URL string
	Err error
}

func (e *OriginFetchError) Error() string {
	return "fetch origin " + e.URL + ": " + e.Err.Error()
}

func (e *OriginFetchError) Unwrap() error {
	return e.Err
}

// RetryableError wraps a transient processing failure. The worker reports
// it to the queue harness, which leaves the message unacknowledged so the
// queue's redelivery policy governs the retry.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps err as retryable.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
