package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for the seatcore.events exchange. Consumers keep floor-plan
// views live without polling the snapshot endpoint.
const (
	EventSeatStatusChanged = "seat.status_changed"
	EventHoldCreated       = "hold.created"
	EventHoldExpired       = "hold.expired"
	EventHoldReleased      = "hold.released"
	EventBookingConfirmed  = "booking.confirmed"
	EventBookingCancelled  = "booking.cancelled"
)

type SeatStatusChangedEvent struct {
	TableID    uuid.UUID  `json:"table_id"`
	SeatNumber int        `json:"seat_number"`
	Status     SeatStatus `json:"status"`
}

type HoldEvent struct {
	HoldID      uuid.UUID `json:"hold_id"`
	TableID     uuid.UUID `json:"table_id"`
	SeatNumbers []int     `json:"seat_numbers"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

type BookingEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	HoldID      uuid.UUID `json:"hold_id"`
	TableID     uuid.UUID `json:"table_id"`
	SeatNumbers []int     `json:"seat_numbers"`
	GuestName   string    `json:"guest_name,omitempty"`
}
