// Package apperr defines the error kinds the engine reports to its callers.
// Handlers map each kind to an HTTP status; everything else wraps these
// sentinels with fmt.Errorf("%w: ...") so errors.Is keeps working.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - a referenced ingredient, recipe or order does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument - the input can never succeed (zero conversion
	// factor, zero adjustment quantity, loss rate out of range).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict - a guarded stock update lost a race or would break the
	// negative-stock policy. Retryable by the caller.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable - the backing store could not be reached. Retryable.
	ErrUnavailable = errors.New("unavailable")

	// ErrGraph - the recipe component graph has a cycle or exceeds the
	// recursion bound. Data problem, not retryable.
	ErrGraph = errors.New("graph error")
)

// NotFound builds an ErrNotFound with context.
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidArgument builds an ErrInvalidArgument with context.
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Conflict builds an ErrConflict with context.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Unavailable builds an ErrUnavailable with context.
func Unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// Graph builds an ErrGraph with context.
func Graph(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrGraph, fmt.Sprintf(format, args...))
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrConflict)
}
