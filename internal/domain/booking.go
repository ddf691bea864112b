package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is the permanent record created when a hold is committed. Immutable
// after creation except for administrative cancellation.
type Booking struct {
	ID           uuid.UUID
	HoldID       uuid.UUID
	TableID      uuid.UUID
	OwnerSession string
	Status       BookingStatus
	SeatIDs      []uuid.UUID
	SeatNumbers  []int
	GuestName    string
	GuestCount   int
	Notes        string
	CreatedAt    time.Time
}

// BookingDetails carries the checkout fields supplied at commit time.
type BookingDetails struct {
	GuestName  string
	GuestCount int
	Notes      string
}

func NewBooking(hold Hold, details BookingDetails, now time.Time) Booking {
	return Booking{
		ID:           uuid.New(),
		HoldID:       hold.ID,
		TableID:      hold.TableID,
		OwnerSession: hold.OwnerSession,
		Status:       BookingConfirmed,
		SeatIDs:      hold.SeatIDs,
		SeatNumbers:  hold.SeatNumbers,
		GuestName:    details.GuestName,
		GuestCount:   details.GuestCount,
		Notes:        details.Notes,
		CreatedAt:    now,
	}
}
