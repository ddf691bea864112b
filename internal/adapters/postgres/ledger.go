package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tablewise/seatcore/internal/domain"
)

// SeatsByNumbers resolves seat rows for a table. Returns domain.ErrNotFound
// when any requested number does not exist on that table, which also rejects
// requests that try to span tables.
func (s *Store) SeatsByNumbers(ctx context.Context, tableID uuid.UUID, numbers []int) ([]domain.Seat, error) {
	nums := make([]int32, len(numbers))
	for i, n := range numbers {
		nums[i] = int32(n)
	}

	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, table_id, seat_number, status, hold_id, booking_id
		FROM seats
		WHERE table_id = $1 AND seat_number = ANY($2::int[])
		ORDER BY seat_number
	`, tableID, nums)
	if err != nil {
		return nil, errors.Wrap(err, "seats by numbers")
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		var st domain.Seat
		if err := rows.Scan(&st.ID, &st.TableID, &st.SeatNumber, &st.Status, &st.HoldID, &st.BookingID); err != nil {
			return nil, err
		}
		seats = append(seats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(seats) != len(numbers) {
		return nil, domain.ErrNotFound
	}
	return seats, nil
}

// Claim flips every seat in the set from free to held in a single statement.
// If any seat is not free the caller's transaction aborts with a
// SeatUnavailableError naming the contested seat numbers, and no seat is
// mutated.
func (s *Store) Claim(ctx context.Context, tableID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE seats SET status = 'held', hold_id = $1
		WHERE id = ANY($2::uuid[]) AND status = 'free'
	`, holdID, uuidStrings(seatIDs))
	if err != nil {
		return errors.Wrap(err, "claim seats")
	}
	if int(tag.RowsAffected()) == len(seatIDs) {
		return nil
	}

	rows, err := s.q(ctx).Query(ctx, `
		SELECT seat_number FROM seats
		WHERE id = ANY($1::uuid[])
		  AND (status <> 'held' OR hold_id IS DISTINCT FROM $2)
		ORDER BY seat_number
	`, uuidStrings(seatIDs), holdID)
	if err != nil {
		return errors.Wrap(err, "claim conflict lookup")
	}
	defer rows.Close()

	var taken []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return err
		}
		taken = append(taken, n)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return &domain.SeatUnavailableError{TableID: tableID, SeatNumbers: taken}
}

// ReleaseSeats returns every seat still held by the hold to free and reports
// the freed seats so callers can emit status events. Idempotent: a second
// call matches no rows and returns an empty slice.
func (s *Store) ReleaseSeats(ctx context.Context, holdID uuid.UUID) ([]domain.Seat, error) {
	return s.mutateSeats(ctx, `
		UPDATE seats SET status = 'free', hold_id = NULL
		WHERE hold_id = $1 AND status = 'held'
		RETURNING id, table_id, seat_number, status, hold_id, booking_id
	`, holdID)
}

// MarkBooked moves the hold's seats from held to booked under the new
// booking. The caller must verify the returned count against the hold's seat
// set inside the same transaction.
func (s *Store) MarkBooked(ctx context.Context, holdID, bookingID uuid.UUID) ([]domain.Seat, error) {
	return s.mutateSeats(ctx, `
		UPDATE seats SET status = 'booked', hold_id = NULL, booking_id = $2
		WHERE hold_id = $1 AND status = 'held'
		RETURNING id, table_id, seat_number, status, hold_id, booking_id
	`, holdID, bookingID)
}

// FreeBookedSeats reverses MarkBooked during administrative cancellation.
func (s *Store) FreeBookedSeats(ctx context.Context, bookingID uuid.UUID) ([]domain.Seat, error) {
	return s.mutateSeats(ctx, `
		UPDATE seats SET status = 'free', booking_id = NULL
		WHERE booking_id = $1 AND status = 'booked'
		RETURNING id, table_id, seat_number, status, hold_id, booking_id
	`, bookingID)
}

func (s *Store) mutateSeats(ctx context.Context, sql string, args ...any) ([]domain.Seat, error) {
	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "mutate seats")
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		var st domain.Seat
		if err := rows.Scan(&st.ID, &st.TableID, &st.SeatNumber, &st.Status, &st.HoldID, &st.BookingID); err != nil {
			return nil, err
		}
		seats = append(seats, st)
	}
	return seats, rows.Err()
}

// Snapshot reads the per-seat status of a table, ordered by seat number.
func (s *Store) Snapshot(ctx context.Context, tableID uuid.UUID) ([]domain.SeatView, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT seat_number, status FROM seats WHERE table_id = $1 ORDER BY seat_number
	`, tableID)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot")
	}
	defer rows.Close()

	var views []domain.SeatView
	for rows.Next() {
		var v domain.SeatView
		if err := rows.Scan(&v.SeatNumber, &v.Status); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(views) == 0 {
		var exists bool
		if err := s.q(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, tableID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
	}
	return views, nil
}

// SeatState reads a single seat's current claim, for the conflict validator.
func (s *Store) SeatState(ctx context.Context, seatID uuid.UUID) (domain.Seat, error) {
	var st domain.Seat
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, table_id, seat_number, status, hold_id, booking_id
		FROM seats WHERE id = $1
	`, seatID).Scan(&st.ID, &st.TableID, &st.SeatNumber, &st.Status, &st.HoldID, &st.BookingID)
	if err == pgx.ErrNoRows {
		return domain.Seat{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Seat{}, err
	}
	return st, nil
}
