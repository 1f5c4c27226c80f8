// Package strand provides event-driven saga orchestration primitives for Go
// applications.
//
// go-strand pairs a domain-event bus (publish, dispatch, replay, with
// deduplication and bounded-concurrency handler fan-out) with a saga
// orchestrator that runs ordered business workflows as sequences of steps,
// including human approval gates and compensating rollback on failure.
//
// # Quick Start
//
// Create a bus with the in-memory adapters for development:
//
//	import (
//	    "github.com/AshkanYarmoradi/go-strand"
//	    "github.com/AshkanYarmoradi/go-strand/adapters/memory"
//	)
//
//	queue := memory.NewQueue()
//	bus := strand.NewEventBus(
//	    strand.WithQueue(queue),
//	    strand.WithDedupStore(memory.NewDedupStore()),
//	    strand.WithEventLog(memory.NewEventLogStore()),
//	)
//	queue.SetDelivery(bus.HandleQueued)
//
// Subscribe handlers with stable identifiers:
//
//	bus.Subscribe("invoice.created", "notify-accounting", func(ctx context.Context, event strand.Event) error {
//	    // ...
//	    return nil
//	})
//
// Publish events:
//
//	bus.Publish(ctx, "invoice.created", "tenant-1", map[string]any{"invoiceId": "inv-42"})
//
// # Sagas
//
// Define a saga as ordered steps with optional compensations and approval
// gates, then register it with an orchestrator:
//
//	def := strand.Definition{
//	    Name:         "invoice-posting",
//	    TriggerEvent: "invoice.created",
//	    Steps: []strand.Step{
//	        strand.NewStep("reserve-number", reserveNumber,
//	            strand.WithCompensation(releaseNumber)),
//	        strand.NewApprovalStep("manager-signoff", prepareSignoff,
//	            strand.WithApprovalRoles("manager")),
//	        strand.NewStep("post-ledger", postLedger),
//	    },
//	}
//
//	orc := strand.NewOrchestrator(bus,
//	    strand.WithInstanceStore(memory.NewInstanceStore()),
//	    strand.WithApprovalService(memory.NewApprovalService()),
//	)
//	orc.RegisterSaga(def)
//
// An approval step suspends the instance until an external decision arrives
// through ResumeAfterApproval. A step failure triggers reverse compensation
// of the previously completed steps.
//
// For production backends see adapters/postgres (instance and event-log
// stores), adapters/redis (dedup claims), queue/kafka and queue/sns
// (remote queues), and approval/webhook (HTTP approval service client).
package strand

// Version returns the library version string.
func Version() string {
	return "0.1.0"
}

// Logger is the minimal logging interface used across the engine.
// It matches structured loggers that accept alternating key/value args.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// noopLogger is a no-op logger implementation.
type noopLogger struct{}

func (l *noopLogger) Debug(msg string, args ...interface{}) {}
func (l *noopLogger) Info(msg string, args ...interface{})  {}
func (l *noopLogger) Warn(msg string, args ...interface{})  {}
func (l *noopLogger) Error(msg string, args ...interface{}) {}
