package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Store tracks which delivery keys have already been processed.
type Store interface {
	// Seen reports whether key was already marked processed.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records key as processed. Marking an already-marked key is harmless.
	Mark(ctx context.Context, key string) error
}

const keyPrefix = "saledetail:processed:"

// RedisStore implements Store on Redis with a per-key TTL. Keys expire after
// the broker's redelivery horizon has passed; an expired duplicate is simply
// reprocessed, which downstream idempotent writes tolerate.
type RedisStore struct {
	client rueidis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client rueidis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Seen implements Store.
func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	cmd := s.client.B().Exists().Key(keyPrefix + key).Build()

	n, err := s.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check processed key: %w", err)
	}

	return n > 0, nil
}

// Mark implements Store.
func (s *RedisStore) Mark(ctx context.Context, key string) error {
	cmd := s.client.B().Set().Key(keyPrefix + key).Value("1").
		Ex(s.ttl).
		Build()

	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to mark processed key: %w", err)
	}

	return nil
}
