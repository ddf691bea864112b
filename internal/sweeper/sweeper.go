// Package sweeper reclaims seats from holds past their deadline. Correctness
// never depends on its timing: validate and commit check expiry lazily, so a
// missed cycle only delays the seats' return to the floor plan.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/clock"
	"github.com/tablewise/seatcore/internal/domain"
	"github.com/tablewise/seatcore/internal/observability"
	"golang.org/x/sync/errgroup"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
	ExpireHold(ctx context.Context, holdID uuid.UUID, now time.Time) (bool, error)
	ReleaseSeats(ctx context.Context, holdID uuid.UUID) ([]domain.Seat, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, payload interface{}) error
}

type SnapshotCache interface {
	Invalidate(ctx context.Context, tableID uuid.UUID) error
}

const (
	maxRetries     = 3
	maxConcurrency = 4
	retryBackoff   = 250 * time.Millisecond
)

type Sweeper struct {
	repo   Repository
	pub    EventPublisher
	cache  SnapshotCache
	clock  clock.Clock
	logger observability.Logger
	batch  int
}

func New(repo Repository, pub EventPublisher, cache SnapshotCache, clk clock.Clock, logger observability.Logger, batch int) *Sweeper {
	return &Sweeper{repo: repo, pub: pub, cache: cache, clock: clk, logger: logger, batch: batch}
}

// Run sweeps on a fixed interval until the context is cancelled. A failed
// cycle is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep cycle failed", err)
			} else if n > 0 {
				s.logger.WithField("reclaimed", n).Info("sweep reclaimed expired holds")
			}
		}
	}
}

// Sweep reclaims one batch of expired holds and reports how many it
// transitioned. Safe to run concurrently with other sweeper instances: the
// expiry transition is status-guarded, so each hold is swept exactly once
// and losers simply skip it.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	holds, err := s.repo.ExpiredHolds(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}

	var swept int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	results := make([]bool, len(holds))
	for i, h := range holds {
		i, h := i, h
		g.Go(func() error {
			ok, err := s.sweepOneWithRetry(gctx, h, now)
			if err != nil {
				s.logger.WithField("hold_id", h.ID).Error("failed to sweep hold after retries", err)
				return nil
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return swept, err
	}
	for _, ok := range results {
		if ok {
			swept++
		}
	}
	return swept, nil
}

func (s *Sweeper) sweepOneWithRetry(ctx context.Context, h domain.Hold, now time.Time) (bool, error) {
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			// Backoff only between attempts; a hold that exhausts its
			// attempts returns without a trailing sleep.
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(1<<(i-1)) * retryBackoff):
			}
		}
		ok, err := s.sweepOne(ctx, h, now)
		if err == nil {
			return ok, nil
		}
	}
	return false, fmt.Errorf("sweep of hold %s failed after %d attempts", h.ID, maxRetries)
}

func (s *Sweeper) sweepOne(ctx context.Context, h domain.Hold, now time.Time) (bool, error) {
	var freed []domain.Seat
	var swept bool

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// Reset on entry: the transaction may be re-run after a conflict.
		swept, freed = false, nil

		ok, err := s.repo.ExpireHold(txCtx, h.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			// Committed, released, or already swept since we listed it.
			return nil
		}
		swept = true
		freed, err = s.repo.ReleaseSeats(txCtx, h.ID)
		return err
	})
	if err != nil || !swept {
		return false, err
	}

	observability.HoldsExpired.Inc()
	if err := s.cache.Invalidate(ctx, h.TableID); err != nil {
		s.logger.Warn("snapshot invalidate failed", err)
	}
	for _, seat := range freed {
		s.publish(ctx, domain.EventSeatStatusChanged, domain.SeatStatusChangedEvent{
			TableID:    h.TableID,
			SeatNumber: seat.SeatNumber,
			Status:     domain.SeatFree,
		})
	}
	s.publish(ctx, domain.EventHoldExpired, domain.HoldEvent{
		HoldID:      h.ID,
		TableID:     h.TableID,
		SeatNumbers: h.SeatNumbers,
		ExpiresAt:   h.ExpiresAt,
	})
	return true, nil
}

func (s *Sweeper) publish(ctx context.Context, key string, payload interface{}) {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = s.pub.PublishJSON(ctx, key, payload); err == nil {
			return
		}
		observability.PublishRetries.Inc()
	}
	s.logger.Warn("publish failed", err)
}
