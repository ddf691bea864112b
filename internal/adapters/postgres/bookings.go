package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tablewise/seatcore/internal/domain"
)

func (s *Store) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO bookings (id, hold_id, table_id, owner_session, status, guest_name, guest_count, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.HoldID, b.TableID, b.OwnerSession, b.Status, b.GuestName, b.GuestCount, b.Notes, b.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert booking")
	}
	for i, seatID := range b.SeatIDs {
		if _, err := s.q(ctx).Exec(ctx, `
			INSERT INTO booking_seats (booking_id, seat_id, seat_number)
			VALUES ($1, $2, $3)
		`, b.ID, seatID, b.SeatNumbers[i]); err != nil {
			return errors.Wrap(err, "insert booking seat")
		}
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	return s.bookingByColumn(ctx, "id", bookingID)
}

// BookingByHold looks up the booking created from a hold. Exactly one can
// exist because bookings.hold_id is unique.
func (s *Store) BookingByHold(ctx context.Context, holdID uuid.UUID) (domain.Booking, error) {
	return s.bookingByColumn(ctx, "hold_id", holdID)
}

func (s *Store) bookingByColumn(ctx context.Context, column string, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, hold_id, table_id, owner_session, status, guest_name, guest_count, notes, created_at
		FROM bookings WHERE `+column+` = $1
	`, id).Scan(&b.ID, &b.HoldID, &b.TableID, &b.OwnerSession, &b.Status, &b.GuestName, &b.GuestCount, &b.Notes, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.Booking{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}

	rows, err := s.q(ctx).Query(ctx, `
		SELECT seat_id, seat_number FROM booking_seats WHERE booking_id = $1 ORDER BY seat_number
	`, b.ID)
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "booking seats")
	}
	defer rows.Close()

	for rows.Next() {
		var seatID uuid.UUID
		var n int
		if err := rows.Scan(&seatID, &n); err != nil {
			return domain.Booking{}, err
		}
		b.SeatIDs = append(b.SeatIDs, seatID)
		b.SeatNumbers = append(b.SeatNumbers, n)
	}
	return b, rows.Err()
}

// CancelBooking flips a confirmed booking to cancelled. The status guard
// makes repeated cancellations a no-op.
func (s *Store) CancelBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE bookings SET status = 'cancelled' WHERE id = $1 AND status = 'confirmed'
	`, bookingID)
	if err != nil {
		return false, errors.Wrap(err, "cancel booking")
	}
	return tag.RowsAffected() == 1, nil
}
