package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Ensure interface compliance at compile time
var _ adapters.DedupStore = (*DedupStore)(nil)

// DedupStore provides an in-memory implementation of adapters.DedupStore.
// Claims expire lazily on the next access after their TTL elapses.
type DedupStore struct {
	mu     sync.Mutex
	claims map[string]time.Time

	// now is the clock function, overridable for tests.
	now func() time.Time
}

// NewDedupStore creates a new in-memory DedupStore.
func NewDedupStore() *DedupStore {
	return &DedupStore{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Claim atomically sets the key with the given TTL if absent.
func (s *DedupStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, adapters.ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	now := s.now()
	if expiry, exists := s.claims[key]; exists && now.Before(expiry) {
		return false, nil
	}

	s.claims[key] = now.Add(ttl)
	return true, nil
}

// Release deletes the key so a replay can be dispatched again.
func (s *DedupStore) Release(ctx context.Context, key string) error {
	if key == "" {
		return adapters.ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	delete(s.claims, key)
	return nil
}

// Close releases any resources (no-op for in-memory implementation).
func (s *DedupStore) Close() error {
	return nil
}

// SetClock overrides the store's clock (useful for TTL tests).
func (s *DedupStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
