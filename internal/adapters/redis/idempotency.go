package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayPrefix = "seatcore:replay:"

// Replays stores the serialized outcome of a mutating request under its
// Idempotency-Key. A retried request finds the recorded response here and
// gets the first execution's result back instead of a second execution.
type Replays struct {
	client *redis.Client
}

func NewReplays(client *redis.Client) *Replays {
	return &Replays{client: client}
}

// StoredResponse is the recorded outcome of the first execution: the HTTP
// status and the body exactly as it was written.
type StoredResponse struct {
	Status int
	Result []byte
}

// Lookup returns the stored response for key, or nil when the key has not
// been seen before.
func (r *Replays) Lookup(ctx context.Context, key string) (*StoredResponse, error) {
	val, err := r.client.Get(ctx, replayPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp StoredResponse
	err = json.Unmarshal(val, &resp)
	return &resp, err
}

// Record stores resp under key. The TTL bounds how long a retry can replay.
func (r *Replays) Record(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, replayPrefix+key, data, ttl).Err()
}
