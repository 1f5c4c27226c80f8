package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Ensure interface compliance at compile time
var _ adapters.EventLogStore = (*EventLogStore)(nil)

// EventLogStore provides an in-memory implementation of adapters.EventLogStore.
type EventLogStore struct {
	mu      sync.RWMutex
	records map[string]*adapters.EventLogRecord
}

// NewEventLogStore creates a new in-memory EventLogStore.
func NewEventLogStore() *EventLogStore {
	return &EventLogStore{
		records: make(map[string]*adapters.EventLogRecord),
	}
}

// Insert writes a new log record, or updates an existing record in place
// when the same event is dispatched again.
func (s *EventLogStore) Insert(ctx context.Context, record *adapters.EventLogRecord) error {
	if record == nil {
		return adapters.ErrNilRecord
	}

	if record.EventID == "" {
		return adapters.ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	saved := copyRecord(record)
	now := time.Now()
	if existing, ok := s.records[record.EventID]; ok {
		saved.CreatedAt = existing.CreatedAt
	} else if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	s.records[record.EventID] = saved
	return nil
}

// Finalize updates the record's status and handler results.
func (s *EventLogStore) Finalize(ctx context.Context, eventID string, status adapters.EventLogStatus, results []adapters.HandlerResult) error {
	if eventID == "" {
		return adapters.ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	record, exists := s.records[eventID]
	if !exists {
		return adapters.ErrEventNotFound
	}

	record.Status = status
	record.HandlerResults = make([]adapters.HandlerResult, len(results))
	copy(record.HandlerResults, results)
	record.UpdatedAt = time.Now()

	return nil
}

// Load retrieves a log record by event ID.
func (s *EventLogStore) Load(ctx context.Context, eventID string) (*adapters.EventLogRecord, error) {
	if eventID == "" {
		return nil, adapters.ErrEmptyID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	record, exists := s.records[eventID]
	if !exists {
		return nil, adapters.ErrEventNotFound
	}

	return copyRecord(record), nil
}

// Close releases any resources (no-op for in-memory implementation).
func (s *EventLogStore) Close() error {
	return nil
}

// Count returns the number of logged events.
func (s *EventLogStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all records (useful for testing).
func (s *EventLogStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*adapters.EventLogRecord)
}

// copyRecord creates a deep copy of an EventLogRecord.
func copyRecord(record *adapters.EventLogRecord) *adapters.EventLogRecord {
	copied := &adapters.EventLogRecord{
		EventID:     record.EventID,
		EventType:   record.EventType,
		TenantID:    record.TenantID,
		AggregateID: record.AggregateID,
		Version:     record.Version,
		Metadata:    record.Metadata,
		Status:      record.Status,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}

	if record.Payload != nil {
		copied.Payload = make(map[string]any, len(record.Payload))
		for k, v := range record.Payload {
			copied.Payload[k] = v
		}
	}

	if record.HandlerResults != nil {
		copied.HandlerResults = make([]adapters.HandlerResult, len(record.HandlerResults))
		copy(copied.HandlerResults, record.HandlerResults)
	}

	return copied
}
