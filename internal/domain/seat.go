package domain

import "github.com/google/uuid"

type SeatStatus string

const (
	SeatFree   SeatStatus = "free"
	SeatHeld   SeatStatus = "held"
	SeatBooked SeatStatus = "booked"
)

// Seat is one physical seat at a table. When Status is not free, exactly one
// of HoldID/BookingID identifies the owning claim.
type Seat struct {
	ID         uuid.UUID
	TableID    uuid.UUID
	SeatNumber int
	Status     SeatStatus
	HoldID     *uuid.UUID
	BookingID  *uuid.UUID
}

type Table struct {
	ID       uuid.UUID
	Venue    string
	Name     string
	Capacity int
}

// SeatView is the per-seat snapshot served to seat-selection UIs.
type SeatView struct {
	SeatNumber int        `json:"seat_number"`
	Status     SeatStatus `json:"status"`
}
