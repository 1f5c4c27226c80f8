package strand

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Default bus configuration.
const (
	// DefaultConcurrencyLimit bounds one event's concurrent handler fan-out.
	DefaultConcurrencyLimit = 5

	// DefaultDedupTTL is the idempotency window for a dispatched event ID.
	//
	// Note the interaction with queue redelivery: the default enqueue
	// policy retries 3 times with exponential backoff from 1s, which is
	// well inside this window, but a queue that redelivers after the TTL
	// expires will see the event dispatched again as if new.
	DefaultDedupTTL = 300 * time.Second

	// DefaultJobType is the queue job type used for published events.
	DefaultJobType = "domain-events"

	// DefaultSource is the metadata source recorded on published events.
	DefaultSource = "event-bus"
)

// EventBusOption configures an EventBus.
type EventBusOption func(*EventBus)

// WithQueue sets the durable queue events are published to.
func WithQueue(queue adapters.Queue) EventBusOption {
	return func(b *EventBus) {
		b.queue = queue
	}
}

// WithDedupStore sets the claim-once store used for idempotent dispatch.
func WithDedupStore(store adapters.DedupStore) EventBusOption {
	return func(b *EventBus) {
		b.dedup = store
	}
}

// WithEventLog sets the audit/replay log store.
func WithEventLog(store adapters.EventLogStore) EventBusOption {
	return func(b *EventBus) {
		b.eventLog = store
	}
}

// WithTenantConfigStore sets the per-tenant policy source.
func WithTenantConfigStore(store adapters.TenantConfigStore) EventBusOption {
	return func(b *EventBus) {
		b.tenants = store
	}
}

// WithBusLogger sets the logger.
func WithBusLogger(logger Logger) EventBusOption {
	return func(b *EventBus) {
		b.logger = logger
	}
}

// WithBusMetrics sets the metrics sink.
func WithBusMetrics(sink MetricsSink) EventBusOption {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

// WithConcurrencyLimit bounds concurrent handler execution per dispatch.
func WithConcurrencyLimit(n int) EventBusOption {
	return func(b *EventBus) {
		if n > 0 {
			b.concurrencyLimit = n
		}
	}
}

// WithDedupTTL sets the idempotency window for dispatched event IDs.
func WithDedupTTL(ttl time.Duration) EventBusOption {
	return func(b *EventBus) {
		if ttl > 0 {
			b.dedupTTL = ttl
		}
	}
}

// WithBusSerializer sets the envelope codec for queue transport.
func WithBusSerializer(serializer Serializer) EventBusOption {
	return func(b *EventBus) {
		b.serializer = serializer
	}
}

// WithJobType sets the queue job type for published events.
func WithJobType(jobType string) EventBusOption {
	return func(b *EventBus) {
		b.jobType = jobType
	}
}

// WithHandlerRegistry sets a custom handler registry.
func WithHandlerRegistry(registry *HandlerRegistry) EventBusOption {
	return func(b *EventBus) {
		b.registry = registry
	}
}

// EventBus publishes domain events to a durable at-least-once queue and,
// on delivery, dispatches them to registered handlers with deduplication,
// tenant-scoped handler exclusions and bounded-concurrency fan-out.
type EventBus struct {
	registry   *HandlerRegistry
	queue      adapters.Queue
	dedup      adapters.DedupStore
	eventLog   adapters.EventLogStore
	tenants    adapters.TenantConfigStore
	serializer Serializer
	metrics    MetricsSink
	logger     Logger

	concurrencyLimit int
	dedupTTL         time.Duration
	jobType          string

	closed atomic.Bool
}

// NewEventBus creates a new EventBus with the given options.
// Queue, dedup, event log and tenant stores are all optional: a bus
// without them degrades to direct in-process dispatch with no
// deduplication, audit or overrides.
func NewEventBus(opts ...EventBusOption) *EventBus {
	b := &EventBus{
		registry:         NewHandlerRegistry(),
		serializer:       NewJSONSerializer(),
		metrics:          noopMetrics{},
		logger:           &noopLogger{},
		concurrencyLimit: DefaultConcurrencyLimit,
		dedupTTL:         DefaultDedupTTL,
		jobType:          DefaultJobType,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers a handler for an event type under a stable ID.
// Registration must precede dispatch of that event type.
func (b *EventBus) Subscribe(eventType, handlerID string, handler Handler) {
	b.registry.Subscribe(eventType, handlerID, handler)
}

// SubscribeAll registers a handler for every event type under a stable ID.
func (b *EventBus) SubscribeAll(handlerID string, handler Handler) {
	b.registry.SubscribeAll(handlerID, handler)
}

// PublishOptions configures a single publish call.
type PublishOptions struct {
	// Source identifies the publisher; defaults to the bus source.
	Source string

	// UserID identifies who triggered the event.
	UserID string

	// SagaID links the event to a causing saga instance.
	SagaID string

	// CorrelationID propagates an existing correlation chain.
	CorrelationID string

	// AggregateID and AggregateVersion identify the affected aggregate.
	AggregateID      string
	AggregateVersion int64
}

// Publish builds the canonical envelope and enqueues it for delivery.
// Publish is fire-and-forget with respect to delivery: enqueue failures
// are logged, not returned, and handlers run only when the queue
// delivers. The built event is returned so callers can correlate.
func (b *EventBus) Publish(ctx context.Context, eventType, tenantID string, payload map[string]any, opts ...PublishOptions) (Event, error) {
	if b.closed.Load() {
		return Event{}, ErrBusClosed
	}
	if eventType == "" {
		return Event{}, ErrEventTypeRequired
	}
	if tenantID == "" {
		return Event{}, ErrTenantRequired
	}

	var po PublishOptions
	if len(opts) > 0 {
		po = opts[0]
	}
	source := po.Source
	if source == "" {
		source = DefaultSource
	}

	eventOpts := []EventOption{WithSource(source)}
	if po.UserID != "" {
		eventOpts = append(eventOpts, WithUserID(po.UserID))
	}
	if po.SagaID != "" {
		eventOpts = append(eventOpts, WithSagaID(po.SagaID))
	}
	if po.CorrelationID != "" {
		eventOpts = append(eventOpts, WithCorrelationID(po.CorrelationID))
	}
	if po.AggregateID != "" {
		eventOpts = append(eventOpts, WithAggregate(po.AggregateID, po.AggregateVersion))
	}

	event := NewEvent(eventType, tenantID, payload, eventOpts...)

	b.metrics.RecordMetric(MetricEventsPublished, 1, map[string]string{
		"event_type": eventType,
		"tenant_id":  tenantID,
	})

	if b.queue == nil {
		b.logger.Debug("No queue configured, skipping enqueue", "eventType", eventType, "eventId", event.ID)
		return event, nil
	}

	data, err := b.serializer.MarshalEvent(event)
	if err != nil {
		b.logger.Error("Failed to serialize event for enqueue",
			"eventType", eventType, "eventId", event.ID, "error", err)
		return event, nil
	}

	enqueueOpts := adapters.EnqueueOptions{
		Attempts:         3,
		Backoff:          adapters.BackoffPolicy{Type: "exponential", Delay: time.Second},
		RemoveOnComplete: true,
		RemoveOnFail:     false,
	}

	if err := b.queue.Enqueue(ctx, b.jobType, data, enqueueOpts); err != nil {
		// Publish is fire-and-forget; the caller never sees enqueue failures.
		b.logger.Error("Failed to enqueue event",
			"eventType", eventType, "eventId", event.ID, "error", err)
	}

	return event, nil
}

// HandleQueued decodes a delivered envelope and dispatches it.
// It is the delivery function to wire into a queue consumer.
func (b *EventBus) HandleQueued(ctx context.Context, jobType string, payload []byte) error {
	event, err := b.serializer.UnmarshalEvent(payload)
	if err != nil {
		b.logger.Error("Failed to decode queued event", "jobType", jobType, "error", err)
		return fmt.Errorf("strand: failed to decode queued event: %w", err)
	}
	return b.Dispatch(ctx, event)
}

// Dispatch delivers an event to its subscribed handlers.
// It is invoked once per queue delivery; because the queue is
// at-least-once it may be called more than once for the same event, and
// the dedup claim ensures handlers run at most once per TTL window.
// Handler failures are recorded, never returned: the only errors
// Dispatch surfaces are envelope validation failures.
func (b *EventBus) Dispatch(ctx context.Context, event Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if err := event.Validate(); err != nil {
		return err
	}

	event = event.WithEnsuredTraceID()

	// Claim-once dedup. Failure to reach the store is best-effort:
	// dispatch proceeds, preferring availability over strict dedup.
	if b.dedup != nil {
		claimed, err := b.dedup.Claim(ctx, dedupKey(event.ID), b.dedupTTL)
		if err != nil {
			b.logger.Warn("Dedup store unavailable, dispatching anyway",
				"eventId", event.ID, "error", err)
		} else if !claimed {
			b.logger.Info("Duplicate event delivery skipped",
				"eventId", event.ID, "eventType", event.Type, "traceId", event.Metadata.TraceID)
			return nil
		}
	}

	// Tenant overrides are best-effort: a failed lookup means none.
	skip := map[string]bool{}
	if b.tenants != nil {
		config, err := b.tenants.Load(ctx, event.TenantID)
		if err != nil {
			b.logger.Warn("Tenant config lookup failed, applying no overrides",
				"tenantId", event.TenantID, "error", err)
		} else {
			for _, id := range config.SkipHandlersFor(event.Type) {
				skip[id] = true
			}
		}
	}

	// Audit row is best-effort and never blocks dispatch.
	if b.eventLog != nil {
		if err := b.eventLog.Insert(ctx, event.LogRecord(adapters.EventLogProcessing)); err != nil {
			b.logger.Warn("Failed to write event log row",
				"eventId", event.ID, "error", err)
		}
	}

	subs := b.registry.ForType(event.Type)
	results := b.fanOut(ctx, event, subs, skip)

	allSucceeded := true
	for _, r := range results {
		if !r.Success {
			allSucceeded = false
			break
		}
	}

	status := adapters.EventLogCompleted
	if !allSucceeded {
		status = adapters.EventLogPartialFailure
	}

	if b.eventLog != nil {
		if err := b.eventLog.Finalize(ctx, event.ID, status, results); err != nil {
			b.logger.Warn("Failed to finalize event log row",
				"eventId", event.ID, "error", err)
		}
	}

	b.metrics.RecordMetric(MetricEventsDispatched, 1, map[string]string{
		"event_type": event.Type,
		"tenant_id":  event.TenantID,
		"status":     string(status),
	})

	b.logger.Debug("Event dispatched",
		"eventId", event.ID, "eventType", event.Type,
		"handlers", len(results), "status", string(status),
		"traceId", event.Metadata.TraceID)

	return nil
}

// fanOut runs the selected handlers concurrently under a fresh per-call
// semaphore. Each handler's failure or panic is caught and recorded
// independently; one handler never cancels or fails its siblings.
func (b *EventBus) fanOut(ctx context.Context, event Event, subs []Subscription, skip map[string]bool) []adapters.HandlerResult {
	results := make([]adapters.HandlerResult, len(subs))

	sem := newSemaphore(b.concurrencyLimit)
	var wg sync.WaitGroup

	for i, sub := range subs {
		if skip[sub.ID] {
			// Suppressed by tenant override; recorded as a successful skip.
			results[i] = adapters.HandlerResult{HandlerID: sub.ID, Success: true, Skipped: true}
			b.logger.Debug("Handler skipped by tenant override",
				"handlerId", sub.ID, "eventId", event.ID, "tenantId", event.TenantID)
			continue
		}

		wg.Add(1)
		go func(i int, sub Subscription) {
			defer wg.Done()

			if err := sem.Acquire(ctx); err != nil {
				results[i] = adapters.HandlerResult{HandlerID: sub.ID, Error: err.Error()}
				return
			}
			defer sem.Release()

			results[i] = b.runHandler(ctx, event, sub)
		}(i, sub)
	}

	wg.Wait()
	return results
}

// runHandler executes one handler with panic isolation and timing.
func (b *EventBus) runHandler(ctx context.Context, event Event, sub Subscription) (result adapters.HandlerResult) {
	result.HandlerID = sub.ID
	start := time.Now()

	defer func() {
		duration := time.Since(start)
		result.DurationMS = duration.Milliseconds()

		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("handler panicked: %v", r)
		}

		b.metrics.RecordMetric(MetricHandlerDuration, float64(duration.Milliseconds()), map[string]string{
			"handler_id": sub.ID,
			"event_type": event.Type,
		})

		if !result.Success {
			b.metrics.RecordMetric(MetricEventsFailed, 1, map[string]string{
				"handler_id": sub.ID,
				"event_type": event.Type,
			})
			b.logger.Error("Handler failed",
				"handlerId", sub.ID, "eventId", event.ID,
				"eventType", event.Type, "error", result.Error,
				"traceId", event.Metadata.TraceID)
		}
	}()

	if err := sub.Handler(ctx, event); err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}

	result.Success = true
	return result
}

// Replay re-dispatches a previously logged event as a fresh envelope.
// The new envelope gets a new ID with the original type, payload, tenant
// and aggregate preserved; metadata.Source is "replay" and trace and
// correlation IDs are regenerated unless present on the logged metadata.
func (b *EventBus) Replay(ctx context.Context, eventID string) (Event, error) {
	if b.closed.Load() {
		return Event{}, ErrBusClosed
	}
	if b.eventLog == nil {
		return Event{}, ErrEventNotFoundInLog
	}

	record, err := b.eventLog.Load(ctx, eventID)
	if err != nil {
		return Event{}, err
	}

	// Clear the original claim so the replay window starts fresh.
	if b.dedup != nil {
		if err := b.dedup.Release(ctx, dedupKey(record.EventID)); err != nil {
			b.logger.Warn("Failed to clear dedup key for replay",
				"eventId", record.EventID, "error", err)
		}
	}

	eventOpts := []EventOption{
		WithSource("replay"),
		WithEventVersion(record.Version),
	}
	if record.AggregateID != "" {
		eventOpts = append(eventOpts, WithAggregate(record.AggregateID, 0))
	}
	if record.Metadata.CorrelationID != "" {
		eventOpts = append(eventOpts, WithCorrelationID(record.Metadata.CorrelationID))
	}
	if record.Metadata.TraceID != "" {
		eventOpts = append(eventOpts, WithTraceID(record.Metadata.TraceID))
	}
	if record.Metadata.UserID != "" {
		eventOpts = append(eventOpts, WithUserID(record.Metadata.UserID))
	}

	replayed := NewEvent(record.EventType, record.TenantID, record.Payload, eventOpts...)

	b.logger.Info("Replaying event",
		"originalEventId", record.EventID, "newEventId", replayed.ID,
		"eventType", replayed.Type)

	if err := b.Dispatch(ctx, replayed); err != nil {
		return Event{}, err
	}

	return replayed, nil
}

// Close closes the bus, preventing further publish and dispatch operations.
func (b *EventBus) Close() error {
	b.closed.Store(true)
	return nil
}

// IsClosed returns true if the bus has been closed.
func (b *EventBus) IsClosed() bool {
	return b.closed.Load()
}

// dedupKey builds the claim key for an event ID.
func dedupKey(eventID string) string {
	return "strand:event:" + eventID
}
