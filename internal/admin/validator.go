// Package admin carries the read-side conflict validator and the two
// administrative override transactions: releasing an active hold off a seat
// and cancelling a confirmed booking. Admin writes never silently overwrite
// a claim; they re-check inside the transaction and abort on any change
// since the admin was shown the conflict.
package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/domain"
	"github.com/tablewise/seatcore/internal/observability"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	SeatState(ctx context.Context, seatID uuid.UUID) (domain.Seat, error)
	GetHold(ctx context.Context, holdID uuid.UUID) (domain.Hold, error)
	AdminReleaseHold(ctx context.Context, holdID uuid.UUID) (bool, error)
	ReleaseSeats(ctx context.Context, holdID uuid.UUID) ([]domain.Seat, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	FreeBookedSeats(ctx context.Context, bookingID uuid.UUID) ([]domain.Seat, error)
}

type Auditor interface {
	LogSeatOverride(ctx context.Context, actor string, seatID, holdID uuid.UUID) error
	LogBookingCancelled(ctx context.Context, actor string, bookingID uuid.UUID) error
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, payload interface{}) error
}

type SnapshotCache interface {
	Invalidate(ctx context.Context, tableID uuid.UUID) error
}

type Service struct {
	repo   Repository
	audit  Auditor
	pub    EventPublisher
	cache  SnapshotCache
	logger observability.Logger
}

func NewService(repo Repository, audit Auditor, pub EventPublisher, cache SnapshotCache, logger observability.Logger) *Service {
	return &Service{repo: repo, audit: audit, pub: pub, cache: cache, logger: logger}
}

// Conflict describes who currently claims a seat.
type Conflict struct {
	SeatID     uuid.UUID
	SeatNumber int
	Status     domain.SeatStatus
	HoldID     *uuid.UUID
	ExpiresAt  *time.Time
	BookingID  *uuid.UUID
}

// CheckConflict is the read path shown to the admin before any override. The
// check-then-act gap is acceptable here only because the override transaction
// re-validates and the admin must explicitly confirm after seeing the
// conflict.
func (s *Service) CheckConflict(ctx context.Context, seatID uuid.UUID) (Conflict, error) {
	seat, err := s.repo.SeatState(ctx, seatID)
	if err != nil {
		return Conflict{}, err
	}
	c := Conflict{SeatID: seat.ID, SeatNumber: seat.SeatNumber, Status: seat.Status}
	if seat.Status == domain.SeatHeld && seat.HoldID != nil {
		h, err := s.repo.GetHold(ctx, *seat.HoldID)
		if err != nil {
			return Conflict{}, err
		}
		c.HoldID = seat.HoldID
		c.ExpiresAt = &h.ExpiresAt
	}
	if seat.Status == domain.SeatBooked {
		c.BookingID = seat.BookingID
	}
	return c, nil
}

// OverrideSeat releases the hold currently on a seat as part of an explicit,
// confirmed admin reassignment. expectedHoldID is the claim the admin was
// shown; if the seat's state moved since, the override aborts with
// ConflictError and the admin must re-check. Booked seats are never
// overridden here; cancel the booking instead.
func (s *Service) OverrideSeat(ctx context.Context, actor string, seatID, expectedHoldID uuid.UUID) error {
	var freed []domain.Seat
	var tableID uuid.UUID

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		seat, err := s.repo.SeatState(txCtx, seatID)
		if err != nil {
			return err
		}
		if seat.Status != domain.SeatHeld || seat.HoldID == nil || *seat.HoldID != expectedHoldID {
			return &domain.ConflictError{SeatID: seatID, Status: seat.Status}
		}
		ok, err := s.repo.AdminReleaseHold(txCtx, expectedHoldID)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.ConflictError{SeatID: seatID, Status: seat.Status}
		}
		freed, err = s.repo.ReleaseSeats(txCtx, expectedHoldID)
		if err != nil {
			return err
		}
		tableID = seat.TableID
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.audit.LogSeatOverride(ctx, actor, seatID, expectedHoldID); err != nil {
		s.logger.Error("audit write failed", err)
	}
	s.notifyFreed(ctx, tableID, freed)
	s.publish(ctx, domain.EventHoldReleased, domain.HoldEvent{
		HoldID:      expectedHoldID,
		TableID:     tableID,
		SeatNumbers: seatNumbers(freed),
	})
	return nil
}

// CancelBooking is the only path that returns booked seats to free. It is
// idempotent: cancelling an already-cancelled booking is a no-op.
func (s *Service) CancelBooking(ctx context.Context, actor string, bookingID uuid.UUID) error {
	var freed []domain.Seat
	var b domain.Booking

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// Reset on entry: the transaction may be re-run after a conflict.
		freed = nil

		var err error
		b, err = s.repo.GetBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		ok, err := s.repo.CancelBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		freed, err = s.repo.FreeBookedSeats(txCtx, bookingID)
		return err
	})
	if err != nil {
		return err
	}
	if len(freed) == 0 {
		return nil
	}

	if err := s.audit.LogBookingCancelled(ctx, actor, bookingID); err != nil {
		s.logger.Error("audit write failed", err)
	}
	s.notifyFreed(ctx, b.TableID, freed)
	s.publish(ctx, domain.EventBookingCancelled, domain.BookingEvent{
		BookingID:   bookingID,
		HoldID:      b.HoldID,
		TableID:     b.TableID,
		SeatNumbers: seatNumbers(freed),
	})
	return nil
}

func (s *Service) notifyFreed(ctx context.Context, tableID uuid.UUID, freed []domain.Seat) {
	if err := s.cache.Invalidate(ctx, tableID); err != nil {
		s.logger.Warn("snapshot invalidate failed", err)
	}
	for _, seat := range freed {
		s.publish(ctx, domain.EventSeatStatusChanged, domain.SeatStatusChangedEvent{
			TableID:    tableID,
			SeatNumber: seat.SeatNumber,
			Status:     domain.SeatFree,
		})
	}
}

func (s *Service) publish(ctx context.Context, key string, payload interface{}) {
	if err := s.pub.PublishJSON(ctx, key, payload); err != nil {
		s.logger.Warn("publish failed", err)
	}
}

func seatNumbers(seats []domain.Seat) []int {
	out := make([]int, len(seats))
	for i, seat := range seats {
		out[i] = seat.SeatNumber
	}
	return out
}
