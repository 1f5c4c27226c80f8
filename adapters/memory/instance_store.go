// Package memory provides in-memory implementations of the strand adapter
// interfaces. These are primarily intended for testing and development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Ensure interface compliance at compile time
var _ adapters.InstanceStore = (*InstanceStore)(nil)

// InstanceStore provides an in-memory implementation of adapters.InstanceStore.
type InstanceStore struct {
	mu        sync.RWMutex
	instances map[string]*adapters.SagaInstance
}

// NewInstanceStore creates a new in-memory InstanceStore.
func NewInstanceStore() *InstanceStore {
	return &InstanceStore{
		instances: make(map[string]*adapters.SagaInstance),
	}
}

// Save persists a saga instance.
// Uses optimistic concurrency control based on the Version field.
func (s *InstanceStore) Save(ctx context.Context, instance *adapters.SagaInstance) error {
	if instance == nil {
		return adapters.ErrNilInstance
	}

	if instance.ID == "" {
		return adapters.ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	existing, exists := s.instances[instance.ID]

	// Version check for optimistic concurrency
	if exists {
		if instance.Version != existing.Version {
			return &adapters.ConcurrencyError{
				InstanceID:      instance.ID,
				ExpectedVersion: instance.Version,
				ActualVersion:   existing.Version,
			}
		}
	} else if instance.Version > 0 {
		// New instance but version > 0 indicates an expected existing one
		return &adapters.InstanceNotFoundError{InstanceID: instance.ID}
	}

	saved := copyInstance(instance)
	saved.UpdatedAt = time.Now()
	saved.Version = instance.Version + 1

	s.instances[instance.ID] = saved

	// Reflect the new version back on the caller's copy
	instance.Version = saved.Version

	return nil
}

// Load retrieves a saga instance by ID.
func (s *InstanceStore) Load(ctx context.Context, instanceID string) (*adapters.SagaInstance, error) {
	if instanceID == "" {
		return nil, adapters.ErrEmptyID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	instance, exists := s.instances[instanceID]
	if !exists {
		return nil, &adapters.InstanceNotFoundError{InstanceID: instanceID}
	}

	return copyInstance(instance), nil
}

// FindByCorrelationID finds the most recently started instance with the
// given correlation ID.
func (s *InstanceStore) FindByCorrelationID(ctx context.Context, correlationID string) (*adapters.SagaInstance, error) {
	if correlationID == "" {
		return nil, adapters.ErrEmptyID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var latest *adapters.SagaInstance
	for _, instance := range s.instances {
		if instance.CorrelationID == correlationID {
			if latest == nil || instance.StartedAt.After(latest.StartedAt) {
				latest = instance
			}
		}
	}

	if latest == nil {
		return nil, &adapters.InstanceNotFoundError{CorrelationID: correlationID}
	}

	return copyInstance(latest), nil
}

// FindByStatus returns instances matching any of the given statuses.
func (s *InstanceStore) FindByStatus(ctx context.Context, statuses ...adapters.SagaStatus) ([]*adapters.SagaInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	statusSet := make(map[adapters.SagaStatus]bool, len(statuses))
	for _, status := range statuses {
		statusSet[status] = true
	}

	var result []*adapters.SagaInstance
	for _, instance := range s.instances {
		if len(statuses) == 0 || statusSet[instance.Status] {
			result = append(result, copyInstance(instance))
		}
	}

	return result, nil
}

// Close releases any resources (no-op for in-memory implementation).
func (s *InstanceStore) Close() error {
	return nil
}

// Clear removes all instances (useful for testing).
func (s *InstanceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances = make(map[string]*adapters.SagaInstance)
}

// Count returns the total number of instances stored.
func (s *InstanceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// copyInstance creates a deep copy of a SagaInstance.
func copyInstance(instance *adapters.SagaInstance) *adapters.SagaInstance {
	copied := &adapters.SagaInstance{
		ID:             instance.ID,
		SagaName:       instance.SagaName,
		SagaVersion:    instance.SagaVersion,
		TriggerEventID: instance.TriggerEventID,
		TenantID:       instance.TenantID,
		CorrelationID:  instance.CorrelationID,
		CurrentStep:    instance.CurrentStep,
		Status:         instance.Status,
		TimeoutAt:      instance.TimeoutAt,
		StartedAt:      instance.StartedAt,
		UpdatedAt:      instance.UpdatedAt,
		Version:        instance.Version,
	}

	if instance.Context != nil {
		copied.Context = make(map[string]any, len(instance.Context))
		for k, v := range instance.Context {
			copied.Context[k] = v
		}
	}

	if instance.StepResults != nil {
		copied.StepResults = make([]adapters.StepResult, len(instance.StepResults))
		copy(copied.StepResults, instance.StepResults)
	}

	return copied
}
