package strand

import (
	"time"

	"github.com/google/uuid"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Metadata contains the contextual information carried by every event.
// This is an alias to the adapter-level type so stores and the engine
// share one representation.
type Metadata = adapters.EventMetadata

// Event is the canonical domain event envelope. Events are immutable once
// constructed; trace and correlation IDs are generated if absent and must
// be propagated end-to-end.
type Event struct {
	// ID is the globally unique event identifier.
	ID string `json:"id"`

	// Type is the event type discriminator (e.g. "invoice.created").
	Type string `json:"type"`

	// Version is the event schema version, defaulting to 1.
	Version int `json:"version"`

	// TenantID identifies the tenant the event belongs to.
	TenantID string `json:"tenantId"`

	// AggregateID is the optional business aggregate the event concerns.
	AggregateID string `json:"aggregateId,omitempty"`

	// AggregateVersion is the aggregate version after the change, if known.
	AggregateVersion int64 `json:"aggregateVersion,omitempty"`

	// Payload is the opaque structured event data.
	Payload map[string]any `json:"payload,omitempty"`

	// Metadata contains source, correlation and tracing information.
	Metadata Metadata `json:"metadata"`
}

// EventOption configures an event during construction.
type EventOption func(*Event)

// WithAggregate sets the aggregate the event concerns.
func WithAggregate(id string, version int64) EventOption {
	return func(e *Event) {
		e.AggregateID = id
		e.AggregateVersion = version
	}
}

// WithEventVersion sets the event schema version.
func WithEventVersion(v int) EventOption {
	return func(e *Event) {
		e.Version = v
	}
}

// WithSource sets the metadata source identifier.
func WithSource(source string) EventOption {
	return func(e *Event) {
		e.Metadata.Source = source
	}
}

// WithUserID sets the user who triggered the event.
func WithUserID(userID string) EventOption {
	return func(e *Event) {
		e.Metadata.UserID = userID
	}
}

// WithSagaID links the event to the saga instance that caused it.
func WithSagaID(sagaID string) EventOption {
	return func(e *Event) {
		e.Metadata.SagaID = sagaID
	}
}

// WithCorrelationID sets an explicit correlation ID.
func WithCorrelationID(id string) EventOption {
	return func(e *Event) {
		e.Metadata.CorrelationID = id
	}
}

// WithTraceID sets an explicit trace ID.
func WithTraceID(id string) EventOption {
	return func(e *Event) {
		e.Metadata.TraceID = id
	}
}

// NewEvent constructs a canonical event envelope.
// The ID, correlation ID, trace ID and timestamp are assigned when absent.
func NewEvent(eventType, tenantID string, payload map[string]any, opts ...EventOption) Event {
	e := Event{
		ID:       uuid.New().String(),
		Type:     eventType,
		Version:  1,
		TenantID: tenantID,
		Payload:  payload,
		Metadata: Metadata{
			Timestamp: time.Now(),
		},
	}

	for _, opt := range opts {
		opt(&e)
	}

	if e.Metadata.CorrelationID == "" {
		e.Metadata.CorrelationID = uuid.New().String()
	}
	if e.Metadata.TraceID == "" {
		e.Metadata.TraceID = uuid.New().String()
	}

	return e
}

// Validate checks that the event carries its required fields.
func (e Event) Validate() error {
	if e.ID == "" {
		return ErrNilEvent
	}
	if e.Type == "" {
		return ErrEventTypeRequired
	}
	if e.TenantID == "" {
		return ErrTenantRequired
	}
	return nil
}

// IsZero reports whether the event is the zero value.
func (e Event) IsZero() bool {
	return e.ID == "" && e.Type == ""
}

// WithEnsuredTraceID returns a copy of the event with a trace ID assigned
// if it was missing. The receiver is never mutated.
func (e Event) WithEnsuredTraceID() Event {
	if e.Metadata.TraceID == "" {
		e.Metadata.TraceID = uuid.New().String()
	}
	return e
}

// LogRecord converts the event to its audit-log representation.
func (e Event) LogRecord(status adapters.EventLogStatus) *adapters.EventLogRecord {
	return &adapters.EventLogRecord{
		EventID:     e.ID,
		EventType:   e.Type,
		TenantID:    e.TenantID,
		AggregateID: e.AggregateID,
		Version:     e.Version,
		Payload:     e.Payload,
		Metadata:    e.Metadata,
		Status:      status,
	}
}
