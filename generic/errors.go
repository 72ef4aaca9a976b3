/*
errors.go - Centralized error types for the accounting core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rule violation is detected before any write, so callers never
  see a half-applied transition. Storage failures are the only errors
  a caller may retry.

ERROR CATEGORIES:
  1. State errors     - Transition attempted from a state that forbids it
  2. Range errors     - End before start, or a range with no working days
  3. Validation errors - Missing or malformed input
  4. Storage errors   - Persistence failed (retryable)
  5. Access errors    - Unattributed or unauthorized caller

USAGE:
  Callers match on the sentinel and read details from the struct:

    var stateErr *generic.InvalidStateError
    if errors.As(err, &stateErr) {
        fmt.Println(stateErr.State)
    }
    if errors.Is(err, generic.ErrEmptyRange) { ... }

SEE ALSO:
  - api/errors.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidState      = errors.New("invalid state transition")
	ErrConcurrentSession = errors.New("an attendance session is already open")
	ErrEmptyRange        = errors.New("date range has no working days")
	ErrInvalidRange      = errors.New("invalid range: end before start")
	ErrValidation        = errors.New("validation failed")
	ErrStorage           = errors.New("storage failure")
	ErrNotFound          = errors.New("not found")

	// ErrConcurrentModification is returned when a compare-and-set lost a race.
	// It always travels inside a StorageError.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrUnauthenticated = errors.New("operation cannot be attributed to an actor")
	ErrForbidden       = errors.New("actor is not allowed to perform this operation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError reports a transition the current state does not allow.
type InvalidStateError struct {
	Entity string // "leave_request", "time_session"
	ID     string
	State  string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %q", e.Action, e.Entity, e.ID, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ConcurrentSessionError reports an attempt to open a second session.
type ConcurrentSessionError struct {
	EmployeeID    EmployeeID
	OpenSessionID string
	WorkDate      Date
}

func (e *ConcurrentSessionError) Error() string {
	if e.OpenSessionID == "" {
		return fmt.Sprintf("employee %s already has an open session", e.EmployeeID)
	}
	return fmt.Sprintf("employee %s already has an open session %s from %s",
		e.EmployeeID, e.OpenSessionID, e.WorkDate)
}

func (e *ConcurrentSessionError) Unwrap() error { return ErrConcurrentSession }

// EmptyRangeError reports a leave range made only of weekends and holidays.
type EmptyRangeError struct {
	Start Date
	End   Date
}

func (e *EmptyRangeError) Error() string {
	return fmt.Sprintf("this period has 0 working days (%s to %s)", e.Start, e.End)
}

func (e *EmptyRangeError) Unwrap() error { return ErrEmptyRange }

type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("end date %s is before start date %s", e.End, e.Start)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StorageError wraps a persistence failure. Errors.Is matches both
// ErrStorage and whatever the underlying error is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// WrapStorage returns nil for nil, passes domain errors through untouched
// and wraps everything else as a StorageError.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConcurrentSession) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrConcurrentSession) ||
		errors.Is(err, ErrEmptyRange) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFound builds an ErrNotFound carrying the entity and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}
