package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tablewise/seatcore/internal/domain"
)

// Cache is a read-through cache for table seat snapshots. The postgres ledger
// stays authoritative; every ledger mutation invalidates the table's key, so
// a stale entry can only last until the next write.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: 30 * time.Second}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func snapshotKey(tableID uuid.UUID) string {
	return "table:" + tableID.String() + ":seats"
}

func (c *Cache) GetSnapshot(ctx context.Context, tableID uuid.UUID) ([]domain.SeatView, bool, error) {
	val, err := c.client.Get(ctx, snapshotKey(tableID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var views []domain.SeatView
	if err := json.Unmarshal(val, &views); err != nil {
		return nil, false, err
	}
	return views, true, nil
}

func (c *Cache) SetSnapshot(ctx context.Context, tableID uuid.UUID, views []domain.SeatView) error {
	data, err := json.Marshal(views)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(tableID), data, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, tableID uuid.UUID) error {
	return c.client.Del(ctx, snapshotKey(tableID)).Err()
}
