package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tablewise/seatcore/internal/domain"
)

// InsertHold persists a new hold and its seat membership. Seat membership is
// recorded separately from seats.hold_id so the hold's history survives the
// seats being released. The holds_owner_session partial unique index backs
// the one-active-hold-per-session rule, so a concurrent insert for the same
// session surfaces as a retryable conflict rather than a second active hold.
func (s *Store) InsertHold(ctx context.Context, hold domain.Hold) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO holds (id, table_id, owner_session, status, extended, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, hold.ID, hold.TableID, hold.OwnerSession, hold.Status, hold.Extended, hold.CreatedAt, hold.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == "holds_owner_session" {
			return domain.ErrTxConflict
		}
		return errors.Wrap(err, "insert hold")
	}
	for i, seatID := range hold.SeatIDs {
		if _, err := s.q(ctx).Exec(ctx, `
			INSERT INTO hold_seats (hold_id, seat_id, seat_number)
			VALUES ($1, $2, $3)
		`, hold.ID, seatID, hold.SeatNumbers[i]); err != nil {
			return errors.Wrap(err, "insert hold seat")
		}
	}
	return nil
}

func (s *Store) GetHold(ctx context.Context, holdID uuid.UUID) (domain.Hold, error) {
	var h domain.Hold
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, table_id, owner_session, status, extended, created_at, expires_at
		FROM holds WHERE id = $1
	`, holdID).Scan(&h.ID, &h.TableID, &h.OwnerSession, &h.Status, &h.Extended, &h.CreatedAt, &h.ExpiresAt)
	if err == pgx.ErrNoRows {
		return domain.Hold{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Hold{}, err
	}
	if err := s.attachSeats(ctx, &h); err != nil {
		return domain.Hold{}, err
	}
	return h, nil
}

func (s *Store) attachSeats(ctx context.Context, h *domain.Hold) error {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT seat_id, seat_number FROM hold_seats WHERE hold_id = $1 ORDER BY seat_number
	`, h.ID)
	if err != nil {
		return errors.Wrap(err, "hold seats")
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return err
		}
		h.SeatIDs = append(h.SeatIDs, id)
		h.SeatNumbers = append(h.SeatNumbers, n)
	}
	return rows.Err()
}

// ActiveHoldBySession returns the caller's current active hold, or nil.
func (s *Store) ActiveHoldBySession(ctx context.Context, ownerSession string) (*domain.Hold, error) {
	var h domain.Hold
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, table_id, owner_session, status, extended, created_at, expires_at
		FROM holds WHERE owner_session = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`, ownerSession).Scan(&h.ID, &h.TableID, &h.OwnerSession, &h.Status, &h.Extended, &h.CreatedAt, &h.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachSeats(ctx, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// CommitHold is the only transition into committed. The guard on status and
// deadline makes it mutually exclusive with the sweeper's expiry transition.
func (s *Store) CommitHold(ctx context.Context, holdID uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE holds SET status = 'committed'
		WHERE id = $1 AND status = 'active' AND expires_at > $2
	`, holdID, now)
	if err != nil {
		return false, errors.Wrap(err, "commit hold")
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseHold marks an active hold released when the owner matches.
func (s *Store) ReleaseHold(ctx context.Context, holdID uuid.UUID, ownerSession string) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE holds SET status = 'released'
		WHERE id = $1 AND owner_session = $2 AND status = 'active'
	`, holdID, ownerSession)
	if err != nil {
		return false, errors.Wrap(err, "release hold")
	}
	return tag.RowsAffected() == 1, nil
}

// AdminReleaseHold releases an active hold regardless of owner, for the
// administrative override path.
func (s *Store) AdminReleaseHold(ctx context.Context, holdID uuid.UUID) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE holds SET status = 'released' WHERE id = $1 AND status = 'active'
	`, holdID)
	if err != nil {
		return false, errors.Wrap(err, "admin release hold")
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireHold is the sweeper's transition. Guarded on status and deadline so a
// hold is swept exactly once, even with concurrent sweeper instances.
func (s *Store) ExpireHold(ctx context.Context, holdID uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE holds SET status = 'expired'
		WHERE id = $1 AND status = 'active' AND expires_at <= $2
	`, holdID, now)
	if err != nil {
		return false, errors.Wrap(err, "expire hold")
	}
	return tag.RowsAffected() == 1, nil
}

// ExtendHold grants the single permitted extension if the hold is still
// active, unexpired, and not yet extended. The new deadline is computed by
// the caller from now, never stacked onto the old one.
func (s *Store) ExtendHold(ctx context.Context, holdID uuid.UUID, ownerSession string, now, expiresAt time.Time) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE holds SET expires_at = $4, extended = TRUE
		WHERE id = $1 AND owner_session = $2 AND status = 'active'
		  AND extended = FALSE AND expires_at > $3
	`, holdID, ownerSession, now, expiresAt)
	if err != nil {
		return false, errors.Wrap(err, "extend hold")
	}
	return tag.RowsAffected() == 1, nil
}

// ExpiredHolds lists active holds past their deadline, oldest first.
func (s *Store) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT h.id, h.table_id, h.owner_session, h.status, h.extended, h.created_at, h.expires_at,
		       hs.seat_id, hs.seat_number
		FROM holds h JOIN hold_seats hs ON hs.hold_id = h.id
		WHERE h.id IN (
			SELECT id FROM holds
			WHERE status = 'active' AND expires_at <= $1
			ORDER BY expires_at LIMIT $2
		)
		ORDER BY h.expires_at, h.id, hs.seat_number
	`, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "expired holds")
	}
	defer rows.Close()

	var holds []domain.Hold
	var current *domain.Hold
	for rows.Next() {
		var h domain.Hold
		var seatID uuid.UUID
		var seatNumber int
		if err := rows.Scan(&h.ID, &h.TableID, &h.OwnerSession, &h.Status, &h.Extended, &h.CreatedAt, &h.ExpiresAt, &seatID, &seatNumber); err != nil {
			return nil, err
		}
		if current == nil || current.ID != h.ID {
			if current != nil {
				holds = append(holds, *current)
			}
			hold := h
			current = &hold
		}
		current.SeatIDs = append(current.SeatIDs, seatID)
		current.SeatNumbers = append(current.SeatNumbers, seatNumber)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		holds = append(holds, *current)
	}
	return holds, nil
}
