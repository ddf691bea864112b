package hold_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/clock"
	"github.com/tablewise/seatcore/internal/domain"
	"github.com/tablewise/seatcore/internal/hold"
	"github.com/tablewise/seatcore/internal/storetest"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func newService(store *storetest.Store, clk clock.Clock) (*hold.Service, *storetest.Publisher) {
	pub := &storetest.Publisher{}
	svc := hold.NewService(store, pub, storetest.NewCache(), clk, storetest.NopLogger(), 20*time.Minute)
	return svc, pub
}

func TestCreate(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, pub := newService(store, clock.NewFixed(t0))

	h, err := svc.Create(context.Background(), tableID, []int{2, 3}, "sess-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if h.Status != domain.HoldActive {
		t.Fatalf("status = %s, want active", h.Status)
	}
	if want := t0.Add(20 * time.Minute); !h.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", h.ExpiresAt, want)
	}
	for _, n := range []int{2, 3} {
		seat := store.Seat(tableID, n)
		if seat.Status != domain.SeatHeld {
			t.Fatalf("seat %d status = %s, want held", n, seat.Status)
		}
		if seat.HoldID == nil || *seat.HoldID != h.ID {
			t.Fatalf("seat %d not attached to hold", n)
		}
	}
	if got := pub.CountByKey(domain.EventSeatStatusChanged); got != 2 {
		t.Fatalf("seat.status_changed events = %d, want 2", got)
	}
	if got := pub.CountByKey(domain.EventHoldCreated); got != 1 {
		t.Fatalf("hold.created events = %d, want 1", got)
	}
}

func TestCreateAllOrNothing(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, _ := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	if _, err := svc.Create(ctx, tableID, []int{3}, "sess-a"); err != nil {
		t.Fatalf("setup hold: %v", err)
	}

	_, err := svc.Create(ctx, tableID, []int{2, 3, 4}, "sess-b")
	var unavail *domain.SeatUnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("err = %v, want SeatUnavailableError", err)
	}
	if len(unavail.SeatNumbers) != 1 || unavail.SeatNumbers[0] != 3 {
		t.Fatalf("contested seats = %v, want [3]", unavail.SeatNumbers)
	}
	// The losing claim must not leave partial state behind.
	for _, n := range []int{2, 4} {
		if seat := store.Seat(tableID, n); seat.Status != domain.SeatFree {
			t.Fatalf("seat %d status = %s after failed claim, want free", n, seat.Status)
		}
	}
}

func TestCreateContention(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, _ := newService(store, clock.NewFixed(t0))

	const sessions = 16
	var wg sync.WaitGroup
	errs := make([]error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), tableID, []int{5}, uuid.NewString())
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		var unavail *domain.SeatUnavailableError
		switch {
		case err == nil:
			winners++
		case errors.As(err, &unavail):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 || losers != sessions-1 {
		t.Fatalf("winners = %d, losers = %d, want 1 and %d", winners, losers, sessions-1)
	}
}

func TestCreateUnknownSeat(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(4)
	svc, _ := newService(store, clock.NewFixed(t0))

	if _, err := svc.Create(context.Background(), tableID, []int{4, 5}, "sess-a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRelease(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, pub := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	h, err := svc.Create(ctx, tableID, []int{1, 2}, "sess-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Release(ctx, h.ID, "sess-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	for _, n := range []int{1, 2} {
		if seat := store.Seat(tableID, n); seat.Status != domain.SeatFree {
			t.Fatalf("seat %d status = %s, want free", n, seat.Status)
		}
	}
	if got := pub.CountByKey(domain.EventHoldReleased); got != 1 {
		t.Fatalf("hold.released events = %d, want 1", got)
	}

	// A second release reads as gone, not as a new state change.
	if err := svc.Release(ctx, h.ID, "sess-a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second release err = %v, want not found", err)
	}
	if got := pub.CountByKey(domain.EventHoldReleased); got != 1 {
		t.Fatalf("hold.released events after replay = %d, want 1", got)
	}
}

func TestReleaseWrongOwner(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, _ := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	h, err := svc.Create(ctx, tableID, []int{1}, "sess-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = svc.Release(ctx, h.ID, "sess-b")
	var notOwned *domain.HoldNotOwnedError
	if !errors.As(err, &notOwned) {
		t.Fatalf("err = %v, want HoldNotOwnedError", err)
	}
	if seat := store.Seat(tableID, 1); seat.Status != domain.SeatHeld {
		t.Fatalf("seat status = %s, want held", seat.Status)
	}
}

func TestExtendOnce(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, _ := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	h, err := svc.Create(ctx, tableID, []int{1}, "sess-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Extend ten minutes in, with the deadline recomputed from now.
	later := clock.NewFixed(t0.Add(10 * time.Minute))
	svc2, _ := newService(store, later)
	extended, err := svc2.Extend(ctx, h.ID, "sess-a")
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := t0.Add(30 * time.Minute); !extended.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", extended.ExpiresAt, want)
	}
	if !extended.Extended {
		t.Fatal("extended flag not set")
	}

	if _, err := svc2.Extend(ctx, h.ID, "sess-a"); !errors.Is(err, domain.ErrAlreadyExtended) {
		t.Fatalf("second extend err = %v, want already extended", err)
	}
}

func TestExtendExpired(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, _ := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	h, err := svc.Create(ctx, tableID, []int{1}, "sess-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	late, _ := newService(store, clock.NewFixed(t0.Add(21*time.Minute)))
	_, err = late.Extend(ctx, h.ID, "sess-a")
	var expired *domain.HoldExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("err = %v, want HoldExpiredError", err)
	}
}

func TestExtendWrongOwner(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, _ := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	h, err := svc.Create(ctx, tableID, []int{1}, "sess-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.Extend(ctx, h.ID, "sess-b")
	var notOwned *domain.HoldNotOwnedError
	if !errors.As(err, &notOwned) {
		t.Fatalf("err = %v, want HoldNotOwnedError", err)
	}
}

func TestValidateLazyExpiry(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, _ := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	h, err := svc.Create(ctx, tableID, []int{1, 2}, "sess-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	state, err := svc.Validate(ctx, h.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if state.Status != domain.HoldActive {
		t.Fatalf("status = %s, want active", state.Status)
	}

	// Past the deadline the hold reads as expired even though the sweeper
	// has not touched it yet.
	late, _ := newService(store, clock.NewFixed(t0.Add(20*time.Minute)))
	state, err = late.Validate(ctx, h.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if state.Status != domain.HoldExpired {
		t.Fatalf("status = %s, want expired", state.Status)
	}
	if store.Hold(h.ID).Status != domain.HoldActive {
		t.Fatal("validate must not mutate the stored hold")
	}
}

func TestCreateInvalidInput(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(6)
	svc, _ := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	if _, err := svc.Create(ctx, tableID, nil, "sess-a"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty seats err = %v, want invalid input", err)
	}
	if _, err := svc.Create(ctx, tableID, []int{1}, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty session err = %v, want invalid input", err)
	}
}

func TestCreateSecondHoldSameSession(t *testing.T) {
	store := storetest.New()
	tableID := store.AddTable(4)
	svc, _ := newService(store, clock.NewFixed(t0))
	ctx := context.Background()

	if _, err := svc.Create(ctx, tableID, []int{1}, "sess-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	// The ledger's unique active-session index refuses a second active hold.
	// The coordinator releases the prior hold before it gets here, so this
	// only fires for callers racing themselves.
	if _, err := svc.Create(ctx, tableID, []int{2}, "sess-a"); !errors.Is(err, domain.ErrTxConflict) {
		t.Fatalf("second create err = %v, want conflict", err)
	}
	// The refused claim rolled back with its transaction.
	if s := store.Seat(tableID, 2); s.Status != domain.SeatFree {
		t.Fatalf("seat 2 status = %s, want free", s.Status)
	}
}
