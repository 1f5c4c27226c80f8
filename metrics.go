package strand

// Metric names emitted by the engine.
const (
	MetricEventsPublished  = "events_published"
	MetricEventsDispatched = "events_dispatched"
	MetricEventsFailed     = "events_failed"
	MetricHandlerDuration  = "handler_duration_ms"
	MetricSagaStarted      = "saga_started"
	MetricSagaStepDuration = "saga_step_duration_ms"
	MetricSagaCompleted    = "saga_completed"
	MetricSagaFailed       = "saga_failed"
	MetricApprovalsCreated = "approvals_created"
	MetricApprovalsDecided = "approvals_decided"
)

// MetricsSink receives engine metrics. Implementations must be safe for
// concurrent use. See middleware/metrics for a Prometheus-backed sink.
type MetricsSink interface {
	// RecordMetric records a named measurement with optional tags.
	// Counters use the value as an increment; duration metrics carry
	// the elapsed time in milliseconds.
	RecordMetric(name string, value float64, tags map[string]string)
}

// noopMetrics is a no-op metrics sink.
type noopMetrics struct{}

func (noopMetrics) RecordMetric(name string, value float64, tags map[string]string) {}
