package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/user-accounts/internal/core/ports"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	pendingTTL            = 30 * time.Second
	pendingMarker         = "pending"
)

// IdempotencyStore binds client Idempotency-Key values to the user they created.
// Key format: idempotency:users:<key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps client; ttl <= 0 uses defaultIdempotencyTTL.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// Claim reserves key with a pending marker. A claim that is never resolved
// expires after pendingTTL so a crashed request does not block retries.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, string, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), pendingMarker, pendingTTL).Result()
	if err != nil {
		return false, "", fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return true, "", nil
	}

	id, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; report in flight and let the client retry
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("idempotency lookup: %w", err)
	}
	return false, boundUserID(id), nil
}

// Remember replaces the pending marker with userID for the full TTL.
func (s *IdempotencyStore) Remember(ctx context.Context, key, userID string) error {
	if err := s.client.Set(ctx, s.key(key), userID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

// Release deletes the claim.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func boundUserID(stored string) string {
	if stored == pendingMarker {
		return ""
	}
	return stored
}

func (s *IdempotencyStore) key(key string) string {
	return "idempotency:users:" + key
}
