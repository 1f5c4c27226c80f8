package memory

import (
	"context"
	"sync"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Ensure interface compliance at compile time
var _ adapters.TenantConfigStore = (*TenantConfigStore)(nil)

// TenantConfigStore provides an in-memory implementation of
// adapters.TenantConfigStore.
type TenantConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*adapters.TenantConfig
}

// NewTenantConfigStore creates a new in-memory TenantConfigStore.
func NewTenantConfigStore() *TenantConfigStore {
	return &TenantConfigStore{
		configs: make(map[string]*adapters.TenantConfig),
	}
}

// Load retrieves the config for a tenant. Returns nil, nil when no
// config exists.
func (s *TenantConfigStore) Load(ctx context.Context, tenantID string) (*adapters.TenantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	config, exists := s.configs[tenantID]
	if !exists {
		return nil, nil
	}

	return config, nil
}

// Set stores the config for a tenant (useful for testing).
func (s *TenantConfigStore) Set(config *adapters.TenantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[config.TenantID] = config
}

// Delete removes the config for a tenant.
func (s *TenantConfigStore) Delete(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, tenantID)
}
