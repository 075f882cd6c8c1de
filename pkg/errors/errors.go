package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents the kind of transport failure behind an Error
type ErrorType string

const (
	ErrorTypeTimeout ErrorType = "timeout"
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeRequest ErrorType = "request"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Category is the retry-relevant classification of an attempt's failure
type Category string

const (
	// CategoryDeadlineAbort means the attempt exceeded its per-attempt timeout
	CategoryDeadlineAbort Category = "deadline_abort"
	// CategoryTransport is any transport failure not caused by the attempt deadline
	CategoryTransport Category = "transport_failure"
	// CategoryServerStatus is a response with status >= 500
	CategoryServerStatus Category = "server_status_failure"
	// CategoryStatus is any other response status
	CategoryStatus Category = "status_failure"
	// CategoryNone means the attempt produced nothing to classify
	CategoryNone Category = "none"
)

// ErrNoResponse is returned when a transport yields neither a response nor an error
var ErrNoResponse = stderrors.New("transport returned no response and no error")

// Error represents a transport error with type information
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the error is a per-attempt deadline abort
func (e *Error) Timeout() bool {
	return e.Type == ErrorTypeTimeout
}

// NewTimeout wraps err as a deadline abort
func NewTimeout(message string, err error) *Error {
	return &Error{Type: ErrorTypeTimeout, Message: message, Err: err}
}

// NewNetwork wraps err as a transport failure
func NewNetwork(message string, err error) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: message, Err: err}
}

// IsDeadlineAbort reports whether err means an attempt ran past its deadline.
// A typed *Error decides by its Type; any other error counts when it wraps
// context.DeadlineExceeded.
func IsDeadlineAbort(err error) bool {
	if err == nil {
		return false
	}

	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type == ErrorTypeTimeout
	}

	return stderrors.Is(err, context.DeadlineExceeded)
}

// Categorize maps an attempt result to its failure category
func Categorize(err error, statusCode int) Category {
	switch {
	case err != nil && IsDeadlineAbort(err):
		return CategoryDeadlineAbort
	case err != nil:
		return CategoryTransport
	case statusCode >= 500:
		return CategoryServerStatus
	case statusCode > 0:
		return CategoryStatus
	default:
		return CategoryNone
	}
}

// IsRetryableStatusCode reports whether a status code usually indicates a
// transient condition. Used only for human-facing hints in the CLI; retry
// decisions come from budgets.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 408, 425, 429:
		return true
	default:
		return statusCode >= 500
	}
}

// Is and As re-export the standard helpers so callers importing this
// package under the errors name keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target
func As(err error, target any) bool { return stderrors.As(err, target) }
