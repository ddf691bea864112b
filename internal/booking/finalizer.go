// Package booking converts an active, unexpired hold into a permanent
// booking. The commit transaction is the single place a hold transitions
// into committed, guarded so it cannot race the sweeper's expiry transition.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/clock"
	"github.com/tablewise/seatcore/internal/domain"
	"github.com/tablewise/seatcore/internal/observability"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetHold(ctx context.Context, holdID uuid.UUID) (domain.Hold, error)
	CommitHold(ctx context.Context, holdID uuid.UUID, now time.Time) (bool, error)
	MarkBooked(ctx context.Context, holdID, bookingID uuid.UUID) ([]domain.Seat, error)
	InsertBooking(ctx context.Context, b domain.Booking) error
	BookingByHold(ctx context.Context, holdID uuid.UUID) (domain.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, payload interface{}) error
}

type SnapshotCache interface {
	Invalidate(ctx context.Context, tableID uuid.UUID) error
}

type Finalizer struct {
	repo   Repository
	pub    EventPublisher
	cache  SnapshotCache
	clock  clock.Clock
	logger observability.Logger
}

func NewFinalizer(repo Repository, pub EventPublisher, cache SnapshotCache, clk clock.Clock, logger observability.Logger) *Finalizer {
	return &Finalizer{repo: repo, pub: pub, cache: cache, clock: clk, logger: logger}
}

// Commit finalizes a hold into a booking in one transaction. Retrying a
// commit that already succeeded returns the original booking for the owning
// session; any other session gets AlreadyCommittedError.
func (f *Finalizer) Commit(ctx context.Context, holdID uuid.UUID, ownerSession string, details domain.BookingDetails) (domain.Booking, error) {
	now := f.clock.Now()

	var result domain.Booking
	var replay bool

	err := f.repo.WithTx(ctx, func(txCtx context.Context) error {
		h, err := f.repo.GetHold(txCtx, holdID)
		if err != nil {
			return err
		}

		switch h.Status {
		case domain.HoldCommitted:
			existing, err := f.repo.BookingByHold(txCtx, holdID)
			if err != nil {
				return err
			}
			if h.OwnerSession != ownerSession {
				return &domain.AlreadyCommittedError{HoldID: holdID, BookingID: existing.ID}
			}
			result = existing
			replay = true
			return nil
		case domain.HoldReleased:
			return domain.ErrHoldReleased
		case domain.HoldExpired:
			return &domain.HoldExpiredError{HoldID: holdID}
		}

		if h.OwnerSession != ownerSession {
			return &domain.HoldNotOwnedError{HoldID: holdID}
		}

		ok, err := f.repo.CommitHold(txCtx, holdID, now)
		if err != nil {
			return err
		}
		if !ok {
			// Active but the deadline guard refused: the hold lapsed and the
			// sweeper simply has not run yet.
			return &domain.HoldExpiredError{HoldID: holdID}
		}

		b := domain.NewBooking(h, details, now)
		if err := f.repo.InsertBooking(txCtx, b); err != nil {
			return err
		}
		seats, err := f.repo.MarkBooked(txCtx, holdID, b.ID)
		if err != nil {
			return err
		}
		if len(seats) != len(h.SeatIDs) {
			return fmt.Errorf("booked %d of %d seats for hold %s", len(seats), len(h.SeatIDs), holdID)
		}
		result = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	if replay {
		return result, nil
	}

	observability.BookingsCommitted.Inc()
	if err := f.cache.Invalidate(ctx, result.TableID); err != nil {
		f.logger.Warn("snapshot invalidate failed", err)
	}
	for _, n := range result.SeatNumbers {
		f.publish(ctx, domain.EventSeatStatusChanged, domain.SeatStatusChangedEvent{
			TableID:    result.TableID,
			SeatNumber: n,
			Status:     domain.SeatBooked,
		})
	}
	f.publish(ctx, domain.EventBookingConfirmed, domain.BookingEvent{
		BookingID:   result.ID,
		HoldID:      result.HoldID,
		TableID:     result.TableID,
		SeatNumbers: result.SeatNumbers,
		GuestName:   result.GuestName,
	})
	return result, nil
}

// Get exposes booking lookup for the confirmation view.
func (f *Finalizer) Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	return f.repo.GetBooking(ctx, bookingID)
}

func (f *Finalizer) publish(ctx context.Context, key string, payload interface{}) {
	if err := f.pub.PublishJSON(ctx, key, payload); err != nil {
		f.logger.Warn("publish failed", err)
	}
}
