// Package domainerr defines the sentinel errors shared by all layers of the
// lending service. Callers classify failures with errors.Is and decide whether
// to surface, retry, or swallow them; the sentinels deliberately carry no
// transport concepts such as HTTP status codes.
package domainerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing lending, reader, or book reference.
	ErrNotFound = errors.New("not found")

	// ErrForbidden signals a business-rule denial (overdue books, outstanding cap).
	ErrForbidden = errors.New("forbidden")

	// ErrConflict signals a state conflict, such as returning an already
	// returned lending or inserting a duplicate lending number.
	ErrConflict = errors.New("conflict")

	// ErrStaleVersion signals an optimistic-concurrency mismatch. Distinct from
	// ErrConflict so callers can retry by reloading.
	ErrStaleVersion = errors.New("stale version")

	// ErrInvalidInput signals malformed input caught at a construction or
	// parse boundary. Never retried.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFound wraps ErrNotFound with the name of the missing entity.
func NotFound(entity string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, entity)
}

// Forbidden wraps ErrForbidden with the denial reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// Conflict wraps ErrConflict with a description of the conflicting state.
func Conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

// StaleVersion wraps ErrStaleVersion with the expected and actual counters.
func StaleVersion(expected, actual int64) error {
	return fmt.Errorf("%w: expected %d, have %d", ErrStaleVersion, expected, actual)
}

// InvalidInput wraps ErrInvalidInput with the validation failure.
func InvalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}
