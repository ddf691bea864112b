// Package storetest provides an in-memory double of the postgres store for
// service-level tests. It mimics the transactional contract: mutations made
// inside WithTx are rolled back when fn returns an error, and WithTx
// serializes callers so claim races have exactly one winner.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/domain"
)

type Store struct {
	mu       sync.Mutex
	seats    map[uuid.UUID]domain.Seat
	holds    map[uuid.UUID]domain.Hold
	bookings map[uuid.UUID]domain.Booking
}

func New() *Store {
	return &Store{
		seats:    make(map[uuid.UUID]domain.Seat),
		holds:    make(map[uuid.UUID]domain.Hold),
		bookings: make(map[uuid.UUID]domain.Booking),
	}
}

// AddTable seeds a table with numbered free seats and returns the table id.
func (s *Store) AddTable(seatCount int) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	tableID := uuid.New()
	for n := 1; n <= seatCount; n++ {
		seat := domain.Seat{
			ID:         uuid.New(),
			TableID:    tableID,
			SeatNumber: n,
			Status:     domain.SeatFree,
		}
		s.seats[seat.ID] = seat
	}
	return tableID
}

// Seat returns the current state of a seat by table and number.
func (s *Store) Seat(tableID uuid.UUID, number int) domain.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range s.seats {
		if seat.TableID == tableID && seat.SeatNumber == number {
			return seat
		}
	}
	return domain.Seat{}
}

// Hold returns the stored hold, zero-valued if absent.
func (s *Store) Hold(holdID uuid.UUID) domain.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holds[holdID]
}

type txKey struct{}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	backupSeats := cloneMap(s.seats)
	backupHolds := cloneMap(s.holds)
	backupBookings := cloneMap(s.bookings)

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.seats = backupSeats
		s.holds = backupHolds
		s.bookings = backupBookings
		return err
	}
	return nil
}

// lock guards direct calls made outside WithTx.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) SeatsByNumbers(ctx context.Context, tableID uuid.UUID, numbers []int) ([]domain.Seat, error) {
	defer s.lock(ctx)()
	var out []domain.Seat
	for _, n := range numbers {
		found := false
		for _, seat := range s.seats {
			if seat.TableID == tableID && seat.SeatNumber == n {
				out = append(out, seat)
				found = true
				break
			}
		}
		if !found {
			return nil, domain.ErrNotFound
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

func (s *Store) Claim(ctx context.Context, tableID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	defer s.lock(ctx)()
	var taken []int
	for _, id := range seatIDs {
		if seat := s.seats[id]; seat.Status != domain.SeatFree {
			taken = append(taken, seat.SeatNumber)
		}
	}
	if len(taken) > 0 {
		sort.Ints(taken)
		return &domain.SeatUnavailableError{TableID: tableID, SeatNumbers: taken}
	}
	for _, id := range seatIDs {
		seat := s.seats[id]
		seat.Status = domain.SeatHeld
		hid := holdID
		seat.HoldID = &hid
		s.seats[id] = seat
	}
	return nil
}

func (s *Store) ReleaseSeats(ctx context.Context, holdID uuid.UUID) ([]domain.Seat, error) {
	defer s.lock(ctx)()
	var freed []domain.Seat
	for id, seat := range s.seats {
		if seat.Status == domain.SeatHeld && seat.HoldID != nil && *seat.HoldID == holdID {
			seat.Status = domain.SeatFree
			seat.HoldID = nil
			s.seats[id] = seat
			freed = append(freed, seat)
		}
	}
	sort.Slice(freed, func(i, j int) bool { return freed[i].SeatNumber < freed[j].SeatNumber })
	return freed, nil
}

func (s *Store) MarkBooked(ctx context.Context, holdID, bookingID uuid.UUID) ([]domain.Seat, error) {
	defer s.lock(ctx)()
	var booked []domain.Seat
	for id, seat := range s.seats {
		if seat.Status == domain.SeatHeld && seat.HoldID != nil && *seat.HoldID == holdID {
			seat.Status = domain.SeatBooked
			seat.HoldID = nil
			bid := bookingID
			seat.BookingID = &bid
			s.seats[id] = seat
			booked = append(booked, seat)
		}
	}
	sort.Slice(booked, func(i, j int) bool { return booked[i].SeatNumber < booked[j].SeatNumber })
	return booked, nil
}

func (s *Store) FreeBookedSeats(ctx context.Context, bookingID uuid.UUID) ([]domain.Seat, error) {
	defer s.lock(ctx)()
	var freed []domain.Seat
	for id, seat := range s.seats {
		if seat.Status == domain.SeatBooked && seat.BookingID != nil && *seat.BookingID == bookingID {
			seat.Status = domain.SeatFree
			seat.BookingID = nil
			s.seats[id] = seat
			freed = append(freed, seat)
		}
	}
	sort.Slice(freed, func(i, j int) bool { return freed[i].SeatNumber < freed[j].SeatNumber })
	return freed, nil
}

func (s *Store) Snapshot(ctx context.Context, tableID uuid.UUID) ([]domain.SeatView, error) {
	defer s.lock(ctx)()
	var views []domain.SeatView
	for _, seat := range s.seats {
		if seat.TableID == tableID {
			views = append(views, domain.SeatView{SeatNumber: seat.SeatNumber, Status: seat.Status})
		}
	}
	if len(views) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(views, func(i, j int) bool { return views[i].SeatNumber < views[j].SeatNumber })
	return views, nil
}

func (s *Store) SeatState(ctx context.Context, seatID uuid.UUID) (domain.Seat, error) {
	defer s.lock(ctx)()
	seat, ok := s.seats[seatID]
	if !ok {
		return domain.Seat{}, domain.ErrNotFound
	}
	return seat, nil
}

func (s *Store) InsertHold(ctx context.Context, hold domain.Hold) error {
	defer s.lock(ctx)()
	// Mirrors the ledger's partial unique index on (owner_session) for
	// active holds.
	for _, h := range s.holds {
		if h.ID != hold.ID && h.OwnerSession == hold.OwnerSession && h.Status == domain.HoldActive {
			return domain.ErrTxConflict
		}
	}
	s.holds[hold.ID] = hold
	return nil
}

func (s *Store) GetHold(ctx context.Context, holdID uuid.UUID) (domain.Hold, error) {
	defer s.lock(ctx)()
	h, ok := s.holds[holdID]
	if !ok {
		return domain.Hold{}, domain.ErrNotFound
	}
	return h, nil
}

func (s *Store) ActiveHoldBySession(ctx context.Context, ownerSession string) (*domain.Hold, error) {
	defer s.lock(ctx)()
	for _, h := range s.holds {
		if h.OwnerSession == ownerSession && h.Status == domain.HoldActive {
			hold := h
			return &hold, nil
		}
	}
	return nil, nil
}

func (s *Store) ReleaseHold(ctx context.Context, holdID uuid.UUID, ownerSession string) (bool, error) {
	defer s.lock(ctx)()
	h, ok := s.holds[holdID]
	if !ok || h.Status != domain.HoldActive || h.OwnerSession != ownerSession {
		return false, nil
	}
	h.Status = domain.HoldReleased
	s.holds[holdID] = h
	return true, nil
}

func (s *Store) AdminReleaseHold(ctx context.Context, holdID uuid.UUID) (bool, error) {
	defer s.lock(ctx)()
	h, ok := s.holds[holdID]
	if !ok || h.Status != domain.HoldActive {
		return false, nil
	}
	h.Status = domain.HoldReleased
	s.holds[holdID] = h
	return true, nil
}

func (s *Store) CommitHold(ctx context.Context, holdID uuid.UUID, now time.Time) (bool, error) {
	defer s.lock(ctx)()
	h, ok := s.holds[holdID]
	if !ok || h.Status != domain.HoldActive || !h.ExpiresAt.After(now) {
		return false, nil
	}
	h.Status = domain.HoldCommitted
	s.holds[holdID] = h
	return true, nil
}

func (s *Store) ExpireHold(ctx context.Context, holdID uuid.UUID, now time.Time) (bool, error) {
	defer s.lock(ctx)()
	h, ok := s.holds[holdID]
	if !ok || h.Status != domain.HoldActive || h.ExpiresAt.After(now) {
		return false, nil
	}
	h.Status = domain.HoldExpired
	s.holds[holdID] = h
	return true, nil
}

func (s *Store) ExtendHold(ctx context.Context, holdID uuid.UUID, ownerSession string, now, expiresAt time.Time) (bool, error) {
	defer s.lock(ctx)()
	h, ok := s.holds[holdID]
	if !ok || h.Status != domain.HoldActive || h.OwnerSession != ownerSession || h.Extended || !h.ExpiresAt.After(now) {
		return false, nil
	}
	h.ExpiresAt = expiresAt
	h.Extended = true
	s.holds[holdID] = h
	return true, nil
}

func (s *Store) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	defer s.lock(ctx)()
	var out []domain.Hold
	for _, h := range s.holds {
		if h.Status == domain.HoldActive && !h.ExpiresAt.After(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertBooking(ctx context.Context, b domain.Booking) error {
	defer s.lock(ctx)()
	for _, existing := range s.bookings {
		if existing.HoldID == b.HoldID {
			return domain.ErrTxConflict
		}
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *Store) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	defer s.lock(ctx)()
	b, ok := s.bookings[bookingID]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *Store) BookingByHold(ctx context.Context, holdID uuid.UUID) (domain.Booking, error) {
	defer s.lock(ctx)()
	for _, b := range s.bookings {
		if b.HoldID == holdID {
			return b, nil
		}
	}
	return domain.Booking{}, domain.ErrNotFound
}

func (s *Store) CancelBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	defer s.lock(ctx)()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status != domain.BookingConfirmed {
		return false, nil
	}
	b.Status = domain.BookingCancelled
	s.bookings[bookingID] = b
	return true, nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
