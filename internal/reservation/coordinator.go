// Package reservation enforces the business constraints around hold
// creation: at most four seats, all on one table, and one active hold per
// session so retries cannot hoard seats.
package reservation

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/domain"
	"github.com/tablewise/seatcore/internal/observability"
)

const MaxSeatsPerHold = 4

type HoldManager interface {
	Create(ctx context.Context, tableID uuid.UUID, seatNumbers []int, ownerSession string) (domain.Hold, error)
	Release(ctx context.Context, holdID uuid.UUID, ownerSession string) error
	ActiveForSession(ctx context.Context, ownerSession string) (*domain.Hold, error)
}

type Coordinator struct {
	holds  HoldManager
	logger observability.Logger
}

func NewCoordinator(holds HoldManager, logger observability.Logger) *Coordinator {
	return &Coordinator{holds: holds, logger: logger}
}

// Reserve validates the request and claims the seats. A caller with a prior
// active hold loses it first, whether or not the new claim succeeds, which
// keeps "change seats" retries from stacking claims.
func (c *Coordinator) Reserve(ctx context.Context, tableID uuid.UUID, seatNumbers []int, ownerSession string) (domain.Hold, error) {
	if ownerSession == "" || tableID == uuid.Nil {
		return domain.Hold{}, domain.ErrInvalidInput
	}
	if len(seatNumbers) == 0 || len(seatNumbers) > MaxSeatsPerHold {
		return domain.Hold{}, domain.ErrInvalidInput
	}

	numbers := append([]int(nil), seatNumbers...)
	sort.Ints(numbers)
	for i := 1; i < len(numbers); i++ {
		if numbers[i] == numbers[i-1] {
			return domain.Hold{}, domain.ErrInvalidInput
		}
	}

	prior, err := c.holds.ActiveForSession(ctx, ownerSession)
	if err != nil {
		return domain.Hold{}, err
	}
	if prior != nil {
		// The sweeper may beat us to it; an already-gone hold is fine.
		if err := c.holds.Release(ctx, prior.ID, ownerSession); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.Hold{}, err
		}
		c.logger.WithField("hold_id", prior.ID).Info("released prior hold for session")
	}

	return c.holds.Create(ctx, tableID, numbers, ownerSession)
}
