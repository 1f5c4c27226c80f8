// Package adapters provides interfaces for orchestration backends.
package adapters

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for adapter implementations.
// Adapters should return these (or errors that match via errors.Is)
// to enable consistent error handling across different backends.
var (
	// ErrInstanceNotFound is returned when a saga instance does not exist.
	ErrInstanceNotFound = errors.New("strand: saga instance not found")

	// ErrEventNotFound is returned when an event is not present in the log.
	ErrEventNotFound = errors.New("strand: event not found in log")

	// ErrConcurrencyConflict is returned when an optimistic concurrency check fails.
	ErrConcurrencyConflict = errors.New("strand: concurrency conflict")

	// ErrEmptyID is returned when an empty identifier is provided.
	ErrEmptyID = errors.New("strand: identifier is required")

	// ErrNilInstance is returned when a nil saga instance is passed.
	ErrNilInstance = errors.New("strand: nil saga instance")

	// ErrNilRecord is returned when a nil event log record is passed.
	ErrNilRecord = errors.New("strand: nil event log record")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("strand: store is closed")
)

// InstanceNotFoundError provides detailed information about a missing saga instance.
type InstanceNotFoundError struct {
	InstanceID    string
	CorrelationID string
}

// NewInstanceNotFoundError creates a new InstanceNotFoundError.
func NewInstanceNotFoundError(instanceID, correlationID string) *InstanceNotFoundError {
	return &InstanceNotFoundError{InstanceID: instanceID, CorrelationID: correlationID}
}

// Error returns the error message.
func (e *InstanceNotFoundError) Error() string {
	if e.InstanceID != "" {
		return "strand: saga instance not found: " + e.InstanceID
	}
	return "strand: saga instance not found with correlation ID: " + e.CorrelationID
}

// Is reports whether this error matches the target error.
func (e *InstanceNotFoundError) Is(target error) bool {
	return target == ErrInstanceNotFound
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *InstanceNotFoundError) Unwrap() error {
	return ErrInstanceNotFound
}

// ConcurrencyError provides detailed information about a lost-update conflict.
type ConcurrencyError struct {
	InstanceID      string
	ExpectedVersion int64
	ActualVersion   int64
}

// NewConcurrencyError creates a new ConcurrencyError.
func NewConcurrencyError(instanceID string, expected, actual int64) *ConcurrencyError {
	return &ConcurrencyError{InstanceID: instanceID, ExpectedVersion: expected, ActualVersion: actual}
}

// Error returns the error message.
func (e *ConcurrencyError) Error() string {
	return "strand: concurrency conflict on saga instance " + e.InstanceID
}

// Is reports whether this error matches the target error.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *ConcurrencyError) Unwrap() error {
	return ErrConcurrencyConflict
}

// EventMetadata contains contextual information carried by every event.
// Trace and correlation IDs are propagated end-to-end for observability.
type EventMetadata struct {
	// Source identifies the publisher of the event (e.g. "api", "replay").
	Source string `json:"source,omitempty"`

	// CorrelationID links related events and sagas across services.
	CorrelationID string `json:"correlationId,omitempty"`

	// UserID identifies who triggered the event.
	UserID string `json:"userId,omitempty"`

	// SagaID links the event to a saga instance that caused it.
	SagaID string `json:"sagaId,omitempty"`

	// TraceID is the distributed tracing identifier.
	TraceID string `json:"traceId,omitempty"`

	// Timestamp is when the event was constructed.
	Timestamp time.Time `json:"timestamp"`
}

// EventLogStatus represents the delivery outcome recorded for an event.
type EventLogStatus string

const (
	// EventLogProcessing indicates dispatch is in progress.
	EventLogProcessing EventLogStatus = "processing"

	// EventLogCompleted indicates every handler succeeded.
	EventLogCompleted EventLogStatus = "completed"

	// EventLogPartialFailure indicates at least one handler failed.
	EventLogPartialFailure EventLogStatus = "partial_failure"
)

// HandlerResult records the outcome of a single handler during dispatch.
type HandlerResult struct {
	// HandlerID is the stable identifier assigned at registration time.
	HandlerID string `json:"handlerId"`

	// Success indicates whether the handler completed without error.
	// Skipped handlers are counted as successful.
	Success bool `json:"success"`

	// Skipped indicates the handler was suppressed by a tenant override.
	Skipped bool `json:"skipped,omitempty"`

	// Error contains the handler error message, if any.
	Error string `json:"error,omitempty"`

	// DurationMS is the handler execution time in milliseconds.
	DurationMS int64 `json:"durationMs"`
}

// EventLogRecord is the audit and replay source of truth for a dispatched event.
type EventLogRecord struct {
	// EventID is the unique event identifier.
	EventID string `json:"eventId"`

	// EventType is the event type discriminator.
	EventType string `json:"eventType"`

	// TenantID identifies the tenant the event belongs to.
	TenantID string `json:"tenantId"`

	// AggregateID is the optional business aggregate the event concerns.
	AggregateID string `json:"aggregateId,omitempty"`

	// Version is the event schema version.
	Version int `json:"version"`

	// Payload is the opaque structured event data.
	Payload map[string]any `json:"payload,omitempty"`

	// Metadata contains the event's contextual information.
	Metadata EventMetadata `json:"metadata"`

	// Status is the recorded dispatch outcome.
	Status EventLogStatus `json:"status"`

	// HandlerResults contains the per-handler outcomes from the last dispatch.
	HandlerResults []HandlerResult `json:"handlerResults,omitempty"`

	// CreatedAt is when the record was first written.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `json:"updatedAt"`
}

// SagaStatus represents the current status of a saga instance.
type SagaStatus string

const (
	// SagaStatusRunning indicates the orchestrator is actively executing steps.
	SagaStatusRunning SagaStatus = "running"

	// SagaStatusWaitingApproval indicates the saga is suspended at an approval gate.
	SagaStatusWaitingApproval SagaStatus = "waiting_approval"

	// SagaStatusCompensating indicates compensating actions are executing.
	SagaStatusCompensating SagaStatus = "compensating"

	// SagaStatusCompleted indicates every step completed successfully.
	SagaStatusCompleted SagaStatus = "completed"

	// SagaStatusFailed indicates the saga failed, whether or not
	// compensation ran to completion.
	SagaStatusFailed SagaStatus = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s SagaStatus) IsTerminal() bool {
	return s == SagaStatusCompleted || s == SagaStatusFailed
}

// StepStatus represents the recorded outcome of a saga step.
type StepStatus string

const (
	// StepCompleted indicates the step (or compensation) succeeded.
	StepCompleted StepStatus = "completed"

	// StepFailed indicates the step (or compensation) failed.
	StepFailed StepStatus = "failed"

	// StepWaitingApproval indicates the step is pending an external decision.
	StepWaitingApproval StepStatus = "waiting_approval"

	// StepApproved indicates the approval gate was approved.
	StepApproved StepStatus = "approved"

	// StepRejected indicates the approval gate was rejected.
	StepRejected StepStatus = "rejected"
)

// StepResult records the outcome of one step execution.
// Compensation entries use the step name suffixed with ":compensate".
type StepResult struct {
	// StepName is the name of the executed step.
	StepName string `json:"stepName"`

	// Status is the recorded step outcome.
	Status StepStatus `json:"status"`

	// Result contains the context fragment produced by the step.
	Result map[string]any `json:"result,omitempty"`

	// Error contains the step error message, if any.
	Error string `json:"error,omitempty"`

	// DecidedBy identifies who decided an approval gate.
	DecidedBy string `json:"decidedBy,omitempty"`

	// CompletedAt is when the step finished or the decision was recorded.
	CompletedAt time.Time `json:"completedAt"`
}

// SagaInstance is the persisted state of one triggered saga run.
// It is the orchestrator's crash-safety checkpoint: after every step the
// instance is saved, and a restarted process can resume from CurrentStep.
type SagaInstance struct {
	// ID is the unique instance identifier.
	ID string `json:"id"`

	// SagaName is the definition this instance was created from.
	SagaName string `json:"sagaName"`

	// SagaVersion is the definition version copied at start time.
	SagaVersion int `json:"sagaVersion"`

	// TriggerEventID is the event that started this instance.
	TriggerEventID string `json:"triggerEventId"`

	// TenantID identifies the owning tenant.
	TenantID string `json:"tenantId"`

	// CorrelationID links the instance to its originating event chain.
	CorrelationID string `json:"correlationId,omitempty"`

	// CurrentStep is the index of the next step to execute.
	CurrentStep int `json:"currentStep"`

	// Status is the current instance status.
	Status SagaStatus `json:"status"`

	// Context is the accumulated key/value state, shallow-merged from
	// each step's output. Later keys override earlier ones.
	Context map[string]any `json:"context,omitempty"`

	// StepResults is the history of executed steps and compensations.
	StepResults []StepResult `json:"stepResults,omitempty"`

	// TimeoutAt is when the instance is considered expired.
	// Recorded for external sweepers; the engine does not enforce it.
	TimeoutAt time.Time `json:"timeoutAt"`

	// StartedAt is when the instance was created.
	StartedAt time.Time `json:"startedAt"`

	// UpdatedAt is when the instance was last persisted.
	UpdatedAt time.Time `json:"updatedAt"`

	// Version for optimistic concurrency control.
	Version int64 `json:"version"`
}

// EventOverride holds per-event-type tenant policy.
type EventOverride struct {
	// SkipHandlers lists handler IDs to silently skip for this event type.
	SkipHandlers []string `json:"skipHandlers,omitempty"`
}

// TenantConfig is per-tenant orchestration policy, read-only to the engine.
type TenantConfig struct {
	// TenantID identifies the tenant.
	TenantID string `json:"tenantId"`

	// EnabledSagas acts as an allow-list when non-empty.
	// When empty, all sagas run for the tenant.
	EnabledSagas []string `json:"enabledSagas,omitempty"`

	// EventOverrides maps event types to their handler overrides.
	EventOverrides map[string]EventOverride `json:"eventOverrides,omitempty"`
}

// SagaEnabled reports whether the named saga may run for this tenant.
// An empty allow-list enables every saga.
func (c *TenantConfig) SagaEnabled(name string) bool {
	if c == nil || len(c.EnabledSagas) == 0 {
		return true
	}
	for _, s := range c.EnabledSagas {
		if s == name {
			return true
		}
	}
	return false
}

// SkipHandlersFor returns the handler IDs suppressed for the given event type.
func (c *TenantConfig) SkipHandlersFor(eventType string) []string {
	if c == nil {
		return nil
	}
	return c.EventOverrides[eventType].SkipHandlers
}

// InstanceStore defines the interface for saga instance persistence.
type InstanceStore interface {
	// Save persists a saga instance.
	// Implementations apply optimistic concurrency based on Version:
	// version 0 creates the instance, any other value must match the
	// stored version or ErrConcurrencyConflict is returned. On success
	// the instance's Version is incremented.
	Save(ctx context.Context, instance *SagaInstance) error

	// Load retrieves an instance by ID.
	// Returns ErrInstanceNotFound if the instance doesn't exist.
	Load(ctx context.Context, instanceID string) (*SagaInstance, error)

	// FindByCorrelationID finds the most recently started instance with
	// the given correlation ID. Returns ErrInstanceNotFound if none exists.
	FindByCorrelationID(ctx context.Context, correlationID string) (*SagaInstance, error)

	// FindByStatus returns instances matching any of the given statuses.
	// If statuses is empty, all instances are returned.
	FindByStatus(ctx context.Context, statuses ...SagaStatus) ([]*SagaInstance, error)

	// Close releases any resources held by the store.
	Close() error
}

// EventLogStore defines the interface for the event audit/replay log.
type EventLogStore interface {
	// Insert writes a new log record. Re-dispatch of an already logged
	// event updates the existing record in place.
	Insert(ctx context.Context, record *EventLogRecord) error

	// Finalize updates the record's status and handler results.
	Finalize(ctx context.Context, eventID string, status EventLogStatus, results []HandlerResult) error

	// Load retrieves a log record by event ID.
	// Returns ErrEventNotFound if no record exists.
	Load(ctx context.Context, eventID string) (*EventLogRecord, error)

	// Close releases any resources held by the store.
	Close() error
}

// DedupStore provides the atomic claim-once primitive used for
// idempotent dispatch. This is the only place the engine relies on true
// cross-process mutual exclusion.
type DedupStore interface {
	// Claim atomically sets the key with the given TTL if absent.
	// Returns true if the claim was won, false if the key already exists.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release deletes the key so a replay can be dispatched again.
	Release(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// TenantConfigStore provides read-only tenant policy lookup.
type TenantConfigStore interface {
	// Load retrieves the config for a tenant.
	// Returns nil, nil when no config exists (no overrides).
	Load(ctx context.Context, tenantID string) (*TenantConfig, error)
}

// BackoffPolicy describes the retry backoff requested from the queue.
type BackoffPolicy struct {
	// Type is the backoff strategy (e.g. "exponential", "fixed").
	Type string `json:"type"`

	// Delay is the initial delay between attempts.
	Delay time.Duration `json:"delay"`
}

// EnqueueOptions carries the retry policy the engine requires from a queue.
type EnqueueOptions struct {
	// Attempts is the maximum number of delivery attempts.
	Attempts int `json:"attempts"`

	// Backoff is the delay policy between attempts.
	Backoff BackoffPolicy `json:"backoff"`

	// RemoveOnComplete requests cleanup of successfully delivered jobs.
	RemoveOnComplete bool `json:"removeOnComplete"`

	// RemoveOnFail requests cleanup of exhausted jobs.
	RemoveOnFail bool `json:"removeOnFail"`
}

// Queue is the contract the engine requires from a durable, at-least-once
// message queue. Delivery (and redelivery under the retry policy) is the
// queue's responsibility; dispatchers must tolerate duplicates.
type Queue interface {
	// Enqueue submits a serialized event envelope for delivery.
	Enqueue(ctx context.Context, jobType string, payload []byte, opts EnqueueOptions) error

	// Close releases any resources held by the queue.
	Close() error
}

// GateRequest describes an approval gate to be created by the approval service.
type GateRequest struct {
	TenantID       string         `json:"tenantId"`
	SagaInstanceID string         `json:"sagaInstanceId"`
	SagaName       string         `json:"sagaName"`
	StepName       string         `json:"stepName"`
	EntityType     string         `json:"entityType,omitempty"`
	EntityID       string         `json:"entityId,omitempty"`
	Title          string         `json:"title,omitempty"`
	Description    string         `json:"description,omitempty"`
	RequestedBy    string         `json:"requestedBy,omitempty"`
	ApprovalRoles  []string       `json:"approvalRoles,omitempty"`
	TimeoutAction  string         `json:"timeoutAction,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

// Gate is the approval service's handle for a created gate.
type Gate struct {
	// ID is the gate identifier assigned by the approval service.
	ID string `json:"id"`

	// CreatedAt is when the gate was created.
	CreatedAt time.Time `json:"createdAt"`
}

// ApprovalService creates and tracks human approval gates. The engine
// depends only on gate creation succeeding or failing; routing the
// decision back into the orchestrator is the service's responsibility.
type ApprovalService interface {
	CreateGate(ctx context.Context, req GateRequest) (*Gate, error)
}
