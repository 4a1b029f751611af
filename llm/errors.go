package llm

import (
	"errors"
)

// Error types for classifying worker failures. Empty-but-successful responses
// are not errors at all; they are classified on content.

// TransientError represents a temporary failure that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent failure that should not be retried,
// such as an auth or bad-request rejection.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// TimeoutError represents a worker that did not respond within budget.
// Retried like a transient error, but surfaced with its own terminal kind so
// the summarizer can distinguish a slow worker from a broken one in records.
type TimeoutError struct {
	err error
}

func (e *TimeoutError) Error() string {
	return e.err.Error()
}

func (e *TimeoutError) Unwrap() error {
	return e.err
}

// NewTimeoutError wraps an error as a timeout.
func NewTimeoutError(err error) error {
	return &TimeoutError{err: err}
}

// IsTransient returns true if the error should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// IsTimeout returns true if the error is a per-call timeout.
func IsTimeout(err error) bool {
	var timeout *TimeoutError
	return errors.As(err, &timeout)
}
