package strand

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshkanYarmoradi/go-strand/adapters"
	"github.com/AshkanYarmoradi/go-strand/adapters/memory"
)

// collectingSink records emitted metrics for assertions.
type collectingSink struct {
	mu      sync.Mutex
	records map[string]float64
}

func newCollectingSink() *collectingSink {
	return &collectingSink{records: make(map[string]float64)}
}

func (s *collectingSink) RecordMetric(name string, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] += value
}

func (s *collectingSink) value(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[name]
}

// failingDedup simulates an unreachable dedup store.
type failingDedup struct{}

func (failingDedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingDedup) Release(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
func (failingDedup) Close() error { return nil }

func TestEventBus_New(t *testing.T) {
	t.Run("creates with defaults", func(t *testing.T) {
		bus := NewEventBus()
		assert.NotNil(t, bus)
		assert.False(t, bus.IsClosed())
		assert.Equal(t, DefaultConcurrencyLimit, bus.concurrencyLimit)
		assert.Equal(t, DefaultDedupTTL, bus.dedupTTL)
	})

	t.Run("applies options", func(t *testing.T) {
		bus := NewEventBus(
			WithConcurrencyLimit(2),
			WithDedupTTL(time.Minute),
			WithJobType("custom-jobs"),
		)
		assert.Equal(t, 2, bus.concurrencyLimit)
		assert.Equal(t, time.Minute, bus.dedupTTL)
		assert.Equal(t, "custom-jobs", bus.jobType)
	})

	t.Run("ignores non-positive limits", func(t *testing.T) {
		bus := NewEventBus(WithConcurrencyLimit(0), WithDedupTTL(-1))
		assert.Equal(t, DefaultConcurrencyLimit, bus.concurrencyLimit)
		assert.Equal(t, DefaultDedupTTL, bus.dedupTTL)
	})
}

func TestEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("requires event type and tenant", func(t *testing.T) {
		bus := NewEventBus()

		_, err := bus.Publish(ctx, "", "tenant-1", nil)
		assert.ErrorIs(t, err, ErrEventTypeRequired)

		_, err = bus.Publish(ctx, "order.created", "", nil)
		assert.ErrorIs(t, err, ErrTenantRequired)
	})

	t.Run("builds envelope with identity and metadata", func(t *testing.T) {
		bus := NewEventBus()

		event, err := bus.Publish(ctx, "order.created", "tenant-1",
			map[string]any{"order_id": "o-1"},
			PublishOptions{UserID: "u-1", AggregateID: "order-1", AggregateVersion: 3})
		require.NoError(t, err)

		assert.NotEmpty(t, event.ID)
		assert.Equal(t, "order.created", event.Type)
		assert.Equal(t, "tenant-1", event.TenantID)
		assert.Equal(t, "order-1", event.AggregateID)
		assert.Equal(t, int64(3), event.AggregateVersion)
		assert.Equal(t, DefaultSource, event.Metadata.Source)
		assert.Equal(t, "u-1", event.Metadata.UserID)
		assert.NotEmpty(t, event.Metadata.CorrelationID)
		assert.NotEmpty(t, event.Metadata.TraceID)
	})

	t.Run("delivers through queue to handlers", func(t *testing.T) {
		queue := memory.NewQueue()
		bus := NewEventBus(WithQueue(queue))
		queue.SetDelivery(bus.HandleQueued)

		var handled atomic.Int32
		bus.Subscribe("order.created", "counter", func(ctx context.Context, event Event) error {
			handled.Add(1)
			return nil
		})

		_, err := bus.Publish(ctx, "order.created", "tenant-1", map[string]any{"k": "v"})
		require.NoError(t, err)

		queue.Drain()
		assert.Equal(t, int32(1), handled.Load())
	})

	t.Run("enqueue failure is not surfaced", func(t *testing.T) {
		queue := memory.NewQueue()
		require.NoError(t, queue.Close())

		bus := NewEventBus(WithQueue(queue))
		event, err := bus.Publish(ctx, "order.created", "tenant-1", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, event.ID)
	})

	t.Run("records publish metric", func(t *testing.T) {
		sink := newCollectingSink()
		bus := NewEventBus(WithBusMetrics(sink))

		_, err := bus.Publish(ctx, "order.created", "tenant-1", nil)
		require.NoError(t, err)
		assert.Equal(t, float64(1), sink.value(MetricEventsPublished))
	})

	t.Run("fails after close", func(t *testing.T) {
		bus := NewEventBus()
		require.NoError(t, bus.Close())

		_, err := bus.Publish(ctx, "order.created", "tenant-1", nil)
		assert.ErrorIs(t, err, ErrBusClosed)
	})
}

func TestEventBus_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid envelopes", func(t *testing.T) {
		bus := NewEventBus()

		err := bus.Dispatch(ctx, Event{})
		assert.Error(t, err)

		err = bus.Dispatch(ctx, Event{ID: "e-1", Type: "order.created"})
		assert.ErrorIs(t, err, ErrTenantRequired)
	})

	t.Run("runs typed then global handlers", func(t *testing.T) {
		bus := NewEventBus()

		var calls []string
		var mu sync.Mutex
		record := func(id string) Handler {
			return func(ctx context.Context, event Event) error {
				mu.Lock()
				calls = append(calls, id)
				mu.Unlock()
				return nil
			}
		}

		bus.Subscribe("order.created", "typed", record("typed"))
		bus.SubscribeAll("audit", record("audit"))

		event := NewEvent("order.created", "tenant-1", nil)
		require.NoError(t, bus.Dispatch(ctx, event))

		mu.Lock()
		defer mu.Unlock()
		assert.ElementsMatch(t, []string{"typed", "audit"}, calls)
	})

	t.Run("deduplicates second delivery", func(t *testing.T) {
		dedup := memory.NewDedupStore()
		bus := NewEventBus(WithDedupStore(dedup))

		var handled atomic.Int32
		bus.Subscribe("order.created", "counter", func(ctx context.Context, event Event) error {
			handled.Add(1)
			return nil
		})

		event := NewEvent("order.created", "tenant-1", nil)
		require.NoError(t, bus.Dispatch(ctx, event))
		require.NoError(t, bus.Dispatch(ctx, event))

		assert.Equal(t, int32(1), handled.Load())
	})

	t.Run("dispatches anyway when dedup store fails", func(t *testing.T) {
		bus := NewEventBus(WithDedupStore(failingDedup{}))

		var handled atomic.Int32
		bus.Subscribe("order.created", "counter", func(ctx context.Context, event Event) error {
			handled.Add(1)
			return nil
		})

		event := NewEvent("order.created", "tenant-1", nil)
		require.NoError(t, bus.Dispatch(ctx, event))
		assert.Equal(t, int32(1), handled.Load())
	})

	t.Run("skips handlers per tenant override", func(t *testing.T) {
		tenants := memory.NewTenantConfigStore()
		tenants.Set(&adapters.TenantConfig{
			TenantID: "tenant-1",
			EventOverrides: map[string]adapters.EventOverride{
				"order.created": {SkipHandlers: []string{"email"}},
			},
		})

		eventLog := memory.NewEventLogStore()
		bus := NewEventBus(WithTenantConfigStore(tenants), WithEventLog(eventLog))

		var emailed, projected atomic.Int32
		bus.Subscribe("order.created", "email", func(ctx context.Context, event Event) error {
			emailed.Add(1)
			return nil
		})
		bus.Subscribe("order.created", "projector", func(ctx context.Context, event Event) error {
			projected.Add(1)
			return nil
		})

		event := NewEvent("order.created", "tenant-1", nil)
		require.NoError(t, bus.Dispatch(ctx, event))

		assert.Equal(t, int32(0), emailed.Load())
		assert.Equal(t, int32(1), projected.Load())

		record, err := eventLog.Load(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, adapters.EventLogCompleted, record.Status)

		var skipResult *adapters.HandlerResult
		for i := range record.HandlerResults {
			if record.HandlerResults[i].HandlerID == "email" {
				skipResult = &record.HandlerResults[i]
			}
		}
		require.NotNil(t, skipResult)
		assert.True(t, skipResult.Skipped)
		assert.True(t, skipResult.Success)
	})

	t.Run("other tenants are unaffected by overrides", func(t *testing.T) {
		tenants := memory.NewTenantConfigStore()
		tenants.Set(&adapters.TenantConfig{
			TenantID: "tenant-1",
			EventOverrides: map[string]adapters.EventOverride{
				"order.created": {SkipHandlers: []string{"email"}},
			},
		})

		bus := NewEventBus(WithTenantConfigStore(tenants))

		var emailed atomic.Int32
		bus.Subscribe("order.created", "email", func(ctx context.Context, event Event) error {
			emailed.Add(1)
			return nil
		})

		event := NewEvent("order.created", "tenant-2", nil)
		require.NoError(t, bus.Dispatch(ctx, event))
		assert.Equal(t, int32(1), emailed.Load())
	})

	t.Run("handler failure isolates siblings and finalizes partial_failure", func(t *testing.T) {
		eventLog := memory.NewEventLogStore()
		bus := NewEventBus(WithEventLog(eventLog))

		var succeeded atomic.Int32
		bus.Subscribe("order.created", "boom", func(ctx context.Context, event Event) error {
			return errors.New("smtp unavailable")
		})
		bus.Subscribe("order.created", "projector", func(ctx context.Context, event Event) error {
			succeeded.Add(1)
			return nil
		})

		event := NewEvent("order.created", "tenant-1", nil)
		require.NoError(t, bus.Dispatch(ctx, event))
		assert.Equal(t, int32(1), succeeded.Load())

		record, err := eventLog.Load(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, adapters.EventLogPartialFailure, record.Status)

		for _, r := range record.HandlerResults {
			if r.HandlerID == "boom" {
				assert.False(t, r.Success)
				assert.Contains(t, r.Error, "smtp unavailable")
			}
		}
	})

	t.Run("handler panic is contained", func(t *testing.T) {
		eventLog := memory.NewEventLogStore()
		bus := NewEventBus(WithEventLog(eventLog))

		bus.Subscribe("order.created", "panicky", func(ctx context.Context, event Event) error {
			panic("nil map write")
		})

		event := NewEvent("order.created", "tenant-1", nil)
		require.NoError(t, bus.Dispatch(ctx, event))

		record, err := eventLog.Load(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, adapters.EventLogPartialFailure, record.Status)
		require.Len(t, record.HandlerResults, 1)
		assert.Contains(t, record.HandlerResults[0].Error, "handler panicked")
	})

	t.Run("bounds concurrent handler execution", func(t *testing.T) {
		bus := NewEventBus(WithConcurrencyLimit(2))

		var active, peak atomic.Int32
		slow := func(ctx context.Context, event Event) error {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			return nil
		}

		for i := 0; i < 6; i++ {
			bus.Subscribe("order.created", string(rune('a'+i)), slow)
		}

		event := NewEvent("order.created", "tenant-1", nil)
		require.NoError(t, bus.Dispatch(ctx, event))
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("assigns trace id when missing", func(t *testing.T) {
		var seen string
		bus := NewEventBus()
		bus.Subscribe("order.created", "capture", func(ctx context.Context, event Event) error {
			seen = event.Metadata.TraceID
			return nil
		})

		event := NewEvent("order.created", "tenant-1", nil)
		event.Metadata.TraceID = ""
		require.NoError(t, bus.Dispatch(ctx, event))
		assert.NotEmpty(t, seen)
	})

	t.Run("fails after close", func(t *testing.T) {
		bus := NewEventBus()
		require.NoError(t, bus.Close())

		err := bus.Dispatch(ctx, NewEvent("order.created", "tenant-1", nil))
		assert.ErrorIs(t, err, ErrBusClosed)
	})
}

func TestEventBus_Replay(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown event id", func(t *testing.T) {
		bus := NewEventBus(WithEventLog(memory.NewEventLogStore()))

		_, err := bus.Replay(ctx, "missing")
		assert.ErrorIs(t, err, ErrEventNotFoundInLog)
	})

	t.Run("no event log configured", func(t *testing.T) {
		bus := NewEventBus()

		_, err := bus.Replay(ctx, "e-1")
		assert.ErrorIs(t, err, ErrEventNotFoundInLog)
	})

	t.Run("re-dispatches fresh envelope", func(t *testing.T) {
		eventLog := memory.NewEventLogStore()
		dedup := memory.NewDedupStore()
		bus := NewEventBus(WithEventLog(eventLog), WithDedupStore(dedup))

		var deliveries []Event
		var mu sync.Mutex
		bus.Subscribe("order.created", "capture", func(ctx context.Context, event Event) error {
			mu.Lock()
			deliveries = append(deliveries, event)
			mu.Unlock()
			return nil
		})

		original := NewEvent("order.created", "tenant-1", map[string]any{"order_id": "o-1"})
		require.NoError(t, bus.Dispatch(ctx, original))

		replayed, err := bus.Replay(ctx, original.ID)
		require.NoError(t, err)

		assert.NotEqual(t, original.ID, replayed.ID)
		assert.Equal(t, original.Type, replayed.Type)
		assert.Equal(t, original.TenantID, replayed.TenantID)
		assert.Equal(t, "replay", replayed.Metadata.Source)
		assert.Equal(t, original.Metadata.CorrelationID, replayed.Metadata.CorrelationID)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, deliveries, 2)
		assert.Equal(t, "o-1", deliveries[1].Payload["order_id"])
	})
}
