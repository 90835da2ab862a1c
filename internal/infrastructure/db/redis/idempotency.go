package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyTTL = 24 * time.Hour
	pendingMarker  = "pending"
)

// IdempotencyStore binds Idempotency-Key headers to generation ids.
// Key format: idem:<user_id>:<key>
// The value is "pending" while the first request runs, then the generation id.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates an IdempotencyStore wrapping the given Redis client.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve claims the key. When it was already claimed it reports the bound
// generation id, or "" if the first request has not finished yet.
func (s *IdempotencyStore) Reserve(ctx context.Context, userID, key string) (string, bool, error) {
	k := s.key(userID, key)
	ok, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("idempotency reserve: %w", err)
	}
	if ok {
		return "", true, nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as still in flight.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if val == pendingMarker {
		return "", false, nil
	}
	return val, false, nil
}

// Complete binds the key to the generation it produced.
func (s *IdempotencyStore) Complete(ctx context.Context, userID, key, generationID string) error {
	return s.client.Set(ctx, s.key(userID, key), generationID, s.ttl).Err()
}

// Release frees the key after a rejected request so the client can retry.
func (s *IdempotencyStore) Release(ctx context.Context, userID, key string) error {
	return s.client.Del(ctx, s.key(userID, key)).Err()
}

func (s *IdempotencyStore) key(userID, key string) string {
	return fmt.Sprintf("idem:%s:%s", userID, key)
}
