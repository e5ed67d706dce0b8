/*
errors.go - Centralized error taxonomy for the cash engine

PURPOSE:
  All expected failure conditions in one place. Every error here except
  ErrStorage is a recoverable-by-the-caller condition: it is returned as
  a typed value, never a panic, and the API layer maps it to a user
  message. ErrStorage is fatal to the in-flight request only; state
  committed by prior operations is never touched.

USAGE:
  if errors.Is(err, ledger.ErrDayNotOpen) { ... }
  if ledger.IsConflict(err) { respond 409 }

SEE ALSO:
  - lifecycle.go: where most of these are produced
  - occupancy package: wraps ErrCourtAlreadyOccupied with court context
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthorized is returned when the actor lacks owner privilege
	// for a gated operation (open day, close day).
	ErrUnauthorized = errors.New("actor lacks owner privilege")

	// ErrDayNotOpen is returned when a mutating operation runs with no
	// open day, or with a day other than the open one.
	ErrDayNotOpen = errors.New("day is not open")

	// ErrAlreadyClosed is returned when opening or closing a day that
	// already has a closing record. Closed days can never be reopened.
	ErrAlreadyClosed = errors.New("day already closed")

	// ErrCourtAlreadyOccupied is returned by the loser of a booking race.
	ErrCourtAlreadyOccupied = errors.New("court already occupied")

	// ErrNoActiveOccupancy is returned when updating occupancy on a
	// court that is free.
	ErrNoActiveOccupancy = errors.New("court has no active occupancy")

	// ErrRefereeAlreadyPaid is returned on a second payout for the
	// same match.
	ErrRefereeAlreadyPaid = errors.New("referee already paid for this match")

	// ErrNotFound is returned for unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrStorage wraps collaborator I/O failures. Fatal to the request;
	// never retried by this core.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps an underlying I/O error with the operation name.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict reports whether the error is an expected business-rule
// rejection the caller can surface and move on from.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDayNotOpen) ||
		errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrCourtAlreadyOccupied) ||
		errors.Is(err, ErrNoActiveOccupancy) ||
		errors.Is(err, ErrRefereeAlreadyPaid)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
