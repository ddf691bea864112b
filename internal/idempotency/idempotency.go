// Package idempotency replays stored responses for repeated POSTs carrying
// the same Idempotency-Key, so a client retrying a successful hold or commit
// gets the original result instead of a conflict.
package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/tablewise/seatcore/internal/adapters/redis"
)

type Idempotency struct {
	replays *redisadapter.Replays
	ttl     time.Duration
}

func NewIdempotency(replays *redisadapter.Replays, ttl time.Duration) *Idempotency {
	return &Idempotency{replays: replays, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.replays.Lookup(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, Result: stored.Result}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.replays.Record(ctx, key, redisadapter.StoredResponse{Status: resp.Status, Result: resp.Result}, i.ttl)
}
