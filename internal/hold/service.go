// Package hold implements the hold manager: the only writer of held seat
// state. It grants time-boxed exclusive claims, extends them at most once,
// releases them, and answers the authoritative validity check used by the
// booking finalizer and by client timers.
package hold

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/clock"
	"github.com/tablewise/seatcore/internal/domain"
	"github.com/tablewise/seatcore/internal/observability"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	SeatsByNumbers(ctx context.Context, tableID uuid.UUID, numbers []int) ([]domain.Seat, error)
	Claim(ctx context.Context, tableID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error
	ReleaseSeats(ctx context.Context, holdID uuid.UUID) ([]domain.Seat, error)
	InsertHold(ctx context.Context, hold domain.Hold) error
	GetHold(ctx context.Context, holdID uuid.UUID) (domain.Hold, error)
	ActiveHoldBySession(ctx context.Context, ownerSession string) (*domain.Hold, error)
	ReleaseHold(ctx context.Context, holdID uuid.UUID, ownerSession string) (bool, error)
	ExtendHold(ctx context.Context, holdID uuid.UUID, ownerSession string, now, expiresAt time.Time) (bool, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, payload interface{}) error
}

type SnapshotCache interface {
	Invalidate(ctx context.Context, tableID uuid.UUID) error
}

type Service struct {
	repo   Repository
	pub    EventPublisher
	cache  SnapshotCache
	clock  clock.Clock
	logger observability.Logger
	ttl    time.Duration
}

func NewService(repo Repository, pub EventPublisher, cache SnapshotCache, clk clock.Clock, logger observability.Logger, ttl time.Duration) *Service {
	return &Service{repo: repo, pub: pub, cache: cache, clock: clk, logger: logger, ttl: ttl}
}

// TTL reports the hold lifetime granted to new holds.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Create atomically claims every requested seat for a new hold. If any seat
// is unavailable the whole transaction aborts and the returned
// SeatUnavailableError names the contested seat numbers.
func (s *Service) Create(ctx context.Context, tableID uuid.UUID, seatNumbers []int, ownerSession string) (domain.Hold, error) {
	if len(seatNumbers) == 0 || ownerSession == "" {
		return domain.Hold{}, domain.ErrInvalidInput
	}

	hold := domain.NewHold(tableID, ownerSession, s.clock.Now(), s.ttl)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		seats, err := s.repo.SeatsByNumbers(txCtx, tableID, seatNumbers)
		if err != nil {
			return err
		}
		hold.SeatIDs = make([]uuid.UUID, len(seats))
		hold.SeatNumbers = make([]int, len(seats))
		for i, seat := range seats {
			hold.SeatIDs[i] = seat.ID
			hold.SeatNumbers[i] = seat.SeatNumber
		}
		if err := s.repo.InsertHold(txCtx, hold); err != nil {
			return err
		}
		return s.repo.Claim(txCtx, tableID, hold.SeatIDs, hold.ID)
	})
	if err != nil {
		var unavail *domain.SeatUnavailableError
		if errors.As(err, &unavail) {
			observability.HoldConflicts.Inc()
		}
		return domain.Hold{}, err
	}

	observability.HoldsCreated.Inc()
	s.notifySeats(ctx, tableID, hold.SeatNumbers, domain.SeatHeld)
	s.publish(ctx, domain.EventHoldCreated, domain.HoldEvent{
		HoldID:      hold.ID,
		TableID:     hold.TableID,
		SeatNumbers: hold.SeatNumbers,
		ExpiresAt:   hold.ExpiresAt,
	})
	return hold, nil
}

// Extend grants the single permitted extension, recomputing the deadline
// from now rather than stacking onto the old one.
func (s *Service) Extend(ctx context.Context, holdID uuid.UUID, ownerSession string) (domain.Hold, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	var hold domain.Hold
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.ExtendHold(txCtx, holdID, ownerSession, now, expiresAt)
		if err != nil {
			return err
		}
		if !ok {
			return s.explainExtendFailure(txCtx, holdID, ownerSession, now)
		}
		hold, err = s.repo.GetHold(txCtx, holdID)
		return err
	})
	if err != nil {
		return domain.Hold{}, err
	}
	return hold, nil
}

func (s *Service) explainExtendFailure(ctx context.Context, holdID uuid.UUID, ownerSession string, now time.Time) error {
	h, err := s.repo.GetHold(ctx, holdID)
	if err != nil {
		return err
	}
	if h.OwnerSession != ownerSession {
		return &domain.HoldNotOwnedError{HoldID: holdID}
	}
	switch {
	case h.Status == domain.HoldActive && h.ExpiredBy(now), h.Status == domain.HoldExpired:
		return &domain.HoldExpiredError{HoldID: holdID}
	case h.Extended:
		return domain.ErrAlreadyExtended
	default:
		return domain.ErrNotFound
	}
}

// Release is the explicit customer-initiated cancel. Releasing a hold that is
// already gone returns a stable not-found without touching ledger state.
func (s *Service) Release(ctx context.Context, holdID uuid.UUID, ownerSession string) error {
	var freed []domain.Seat
	var tableID uuid.UUID

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.ReleaseHold(txCtx, holdID, ownerSession)
		if err != nil {
			return err
		}
		if !ok {
			h, err := s.repo.GetHold(txCtx, holdID)
			if err != nil {
				return err
			}
			if h.Status == domain.HoldActive && h.OwnerSession != ownerSession {
				return &domain.HoldNotOwnedError{HoldID: holdID}
			}
			return domain.ErrNotFound
		}
		freed, err = s.repo.ReleaseSeats(txCtx, holdID)
		if err != nil {
			return err
		}
		if len(freed) > 0 {
			tableID = freed[0].TableID
		}
		return nil
	})
	if err != nil {
		return err
	}

	seatNumbers := make([]int, len(freed))
	for i, seat := range freed {
		seatNumbers[i] = seat.SeatNumber
	}
	s.notifySeats(ctx, tableID, seatNumbers, domain.SeatFree)
	s.publish(ctx, domain.EventHoldReleased, domain.HoldEvent{
		HoldID:      holdID,
		TableID:     tableID,
		SeatNumbers: seatNumbers,
	})
	return nil
}

// State is the validate result consumed by the finalizer and client timers.
type State struct {
	Status      domain.HoldStatus
	TableID     uuid.UUID
	SeatNumbers []int
	ExpiresAt   time.Time
}

// Validate reports the hold's authoritative state. An active hold past its
// deadline reads as expired even before the sweeper reclaims it, so a
// clock-skewed client can never stretch a hold's real lifetime.
func (s *Service) Validate(ctx context.Context, holdID uuid.UUID) (State, error) {
	h, err := s.repo.GetHold(ctx, holdID)
	if err != nil {
		return State{}, err
	}
	status := h.Status
	if status == domain.HoldActive && h.ExpiredBy(s.clock.Now()) {
		status = domain.HoldExpired
	}
	return State{
		Status:      status,
		TableID:     h.TableID,
		SeatNumbers: h.SeatNumbers,
		ExpiresAt:   h.ExpiresAt,
	}, nil
}

// ActiveForSession returns the caller's current active hold, or nil.
func (s *Service) ActiveForSession(ctx context.Context, ownerSession string) (*domain.Hold, error) {
	return s.repo.ActiveHoldBySession(ctx, ownerSession)
}

func (s *Service) notifySeats(ctx context.Context, tableID uuid.UUID, seatNumbers []int, status domain.SeatStatus) {
	if err := s.cache.Invalidate(ctx, tableID); err != nil {
		s.logger.Warn("snapshot invalidate failed", err)
	}
	for _, n := range seatNumbers {
		s.publish(ctx, domain.EventSeatStatusChanged, domain.SeatStatusChangedEvent{
			TableID:    tableID,
			SeatNumber: n,
			Status:     status,
		})
	}
}

func (s *Service) publish(ctx context.Context, key string, payload interface{}) {
	if err := s.pub.PublishJSON(ctx, key, payload); err != nil {
		s.logger.Warn("publish failed", err)
	}
}
