package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/domain"
)

// InsertTable registers a table in the ledger.
func (s *Store) InsertTable(ctx context.Context, table domain.Table) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO tables (id, venue, name, capacity)
		VALUES ($1, $2, $3, $4)`,
		table.ID, table.Venue, table.Name, table.Capacity)
	if err != nil {
		return errors.Wrap(err, "insert table")
	}
	return nil
}

// InsertSeat adds one free seat to a table.
func (s *Store) InsertSeat(ctx context.Context, seat domain.Seat) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO seats (id, table_id, seat_number, status)
		VALUES ($1, $2, $3, $4)`,
		seat.ID, seat.TableID, seat.SeatNumber, seat.Status)
	if err != nil {
		return errors.Wrap(err, "insert seat")
	}
	return nil
}

// ProvisionTable creates a table with capacity free seats numbered from 1,
// in one transaction.
func (s *Store) ProvisionTable(ctx context.Context, table domain.Table) error {
	return s.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.InsertTable(txCtx, table); err != nil {
			return err
		}
		for n := 1; n <= table.Capacity; n++ {
			seat := domain.Seat{
				ID:         uuid.New(),
				TableID:    table.ID,
				SeatNumber: n,
				Status:     domain.SeatFree,
			}
			if err := s.InsertSeat(txCtx, seat); err != nil {
				return err
			}
		}
		return nil
	})
}
