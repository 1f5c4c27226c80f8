// Package redis provides a Redis implementation of the dedup store,
// giving the bus a cross-process claim-once primitive.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

var _ adapters.DedupStore = (*DedupStore)(nil)

// DedupStore implements claim-once semantics on Redis using SET NX
// with a TTL. A single round trip decides the claim atomically, which
// makes it safe across bus processes sharing one Redis.
type DedupStore struct {
	client redis.UniversalClient
	prefix string
}

// Option configures a DedupStore.
type Option func(*DedupStore)

// WithKeyPrefix sets the key namespace prefix. Defaults to "strand:dedup:".
func WithKeyPrefix(prefix string) Option {
	return func(s *DedupStore) {
		s.prefix = prefix
	}
}

// NewDedupStore creates a DedupStore on an existing client.
func NewDedupStore(client redis.UniversalClient, opts ...Option) *DedupStore {
	s := &DedupStore{
		client: client,
		prefix: "strand:dedup:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDedupStoreFromAddr creates a DedupStore with its own client.
func NewDedupStoreFromAddr(addr string, opts ...Option) *DedupStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return NewDedupStore(client, opts...)
}

// Claim atomically sets the key with the given TTL if absent.
// Returns true if the claim was won.
func (s *DedupStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("strand/redis: failed to claim key: %w", err)
	}
	return ok, nil
}

// Release deletes the key so the same event ID can be claimed again.
func (s *DedupStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("strand/redis: failed to release key: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *DedupStore) Close() error {
	return s.client.Close()
}
