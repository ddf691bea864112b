package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrTxConflict      = errors.New("transaction conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrHoldReleased    = errors.New("hold released")
	ErrAlreadyExtended = errors.New("hold already extended once")
)

// SeatUnavailableError reports which requested seats were not free at claim
// time, so the caller can redraw availability.
type SeatUnavailableError struct {
	TableID     uuid.UUID
	SeatNumbers []int
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable on table %s: %v", e.TableID, e.SeatNumbers)
}

// HoldExpiredError is returned when a commit or extension arrives past the
// hold's deadline, whether or not the sweeper has run yet.
type HoldExpiredError struct {
	HoldID uuid.UUID
}

func (e *HoldExpiredError) Error() string {
	return fmt.Sprintf("hold %s expired", e.HoldID)
}

// HoldNotOwnedError signals a token/session mismatch. Treated as a client bug
// or tampering, never retried.
type HoldNotOwnedError struct {
	HoldID uuid.UUID
}

func (e *HoldNotOwnedError) Error() string {
	return fmt.Sprintf("hold %s not owned by caller", e.HoldID)
}

// AlreadyCommittedError reports a double commit by a session other than the
// one that committed; same-session retries return the original booking
// instead of this error.
type AlreadyCommittedError struct {
	HoldID    uuid.UUID
	BookingID uuid.UUID
}

func (e *AlreadyCommittedError) Error() string {
	return fmt.Sprintf("hold %s already committed as booking %s", e.HoldID, e.BookingID)
}

// ConflictError means an administrative override found the seat in a
// different state than the admin was shown. The caller must re-check and
// re-confirm.
type ConflictError struct {
	SeatID uuid.UUID
	Status SeatStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seat %s changed state, now %s", e.SeatID, e.Status)
}
