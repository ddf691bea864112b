package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldCommitted HoldStatus = "committed"
	HoldReleased  HoldStatus = "released"
	HoldExpired   HoldStatus = "expired"
)

// Hold is a time-boxed exclusive claim on 1-4 seats of a single table. The ID
// doubles as the opaque token handed to the client; uuid v4 gives 122 random
// bits, which is enough to make tokens unguessable.
type Hold struct {
	ID           uuid.UUID
	TableID      uuid.UUID
	OwnerSession string
	Status       HoldStatus
	SeatIDs      []uuid.UUID
	SeatNumbers  []int
	Extended     bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// NewHold builds an active hold expiring at now + ttl. Seats are attached by
// the ledger claim, not here.
func NewHold(tableID uuid.UUID, ownerSession string, now time.Time, ttl time.Duration) Hold {
	return Hold{
		ID:           uuid.New(),
		TableID:      tableID,
		OwnerSession: ownerSession,
		Status:       HoldActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// ExpiredBy reports whether the hold's deadline has passed at the given
// instant. Only meaningful for active holds.
func (h Hold) ExpiredBy(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
