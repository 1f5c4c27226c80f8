// Package metrics provides a Prometheus-backed metrics sink for the
// event bus and saga orchestrator.
//
// Basic usage:
//
//	sink := metrics.New(metrics.WithMetricsServiceName("billing"))
//	prometheus.MustRegister(sink.Collectors()...)
//
//	bus := strand.NewEventBus(strand.WithBusMetrics(sink))
//
// The sink translates the engine's metric stream into Prometheus
// counters and histograms: publish and dispatch volumes, per-handler
// failures and durations, saga lifecycle counts, step durations and
// approval gate activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	strand "github.com/AshkanYarmoradi/go-strand"
)

// Default metric labels.
const (
	LabelEventType = "event_type"
	LabelTenantID  = "tenant_id"
	LabelHandlerID = "handler_id"
	LabelStatus    = "status"
	LabelSaga      = "saga"
	LabelStep      = "step"
	LabelDecision  = "decision"
	LabelService   = "service"
)

var _ strand.MetricsSink = (*Sink)(nil)

// Sink implements strand.MetricsSink on Prometheus collectors.
type Sink struct {
	namespace   string
	subsystem   string
	serviceName string

	eventsPublished  *prometheus.CounterVec
	eventsDispatched *prometheus.CounterVec
	eventsFailed     *prometheus.CounterVec
	handlerDuration  *prometheus.HistogramVec

	sagasStarted     *prometheus.CounterVec
	sagasCompleted   *prometheus.CounterVec
	sagasFailed      *prometheus.CounterVec
	sagaStepDuration *prometheus.HistogramVec

	approvalsCreated *prometheus.CounterVec
	approvalsDecided *prometheus.CounterVec
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithNamespace sets the Prometheus namespace.
func WithNamespace(namespace string) SinkOption {
	return func(s *Sink) {
		s.namespace = namespace
	}
}

// WithSubsystem sets the Prometheus subsystem.
func WithSubsystem(subsystem string) SinkOption {
	return func(s *Sink) {
		s.subsystem = subsystem
	}
}

// WithMetricsServiceName sets the service name label.
func WithMetricsServiceName(name string) SinkOption {
	return func(s *Sink) {
		s.serviceName = name
	}
}

// New creates a Sink with default settings.
func New(opts ...SinkOption) *Sink {
	s := &Sink{
		namespace:   "strand",
		serviceName: "unknown",
	}

	for _, opt := range opts {
		opt(s)
	}

	s.initCollectors()
	return s
}

func (s *Sink) initCollectors() {
	s.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "events_published_total",
			Help:      "Total number of events published to the queue.",
		},
		[]string{LabelService, LabelEventType, LabelTenantID},
	)

	s.eventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "events_dispatched_total",
			Help:      "Total number of events dispatched to handlers.",
		},
		[]string{LabelService, LabelEventType, LabelTenantID, LabelStatus},
	)

	s.eventsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "handler_failures_total",
			Help:      "Total number of handler failures.",
		},
		[]string{LabelService, LabelHandlerID, LabelEventType},
	)

	s.handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "handler_duration_seconds",
			Help:      "Duration of handler execution in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelHandlerID, LabelEventType},
	)

	s.sagasStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "sagas_started_total",
			Help:      "Total number of saga instances started.",
		},
		[]string{LabelService, LabelSaga, LabelTenantID},
	)

	s.sagasCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "sagas_completed_total",
			Help:      "Total number of saga instances completed successfully.",
		},
		[]string{LabelService, LabelSaga, LabelTenantID},
	)

	s.sagasFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "sagas_failed_total",
			Help:      "Total number of saga instances that ended failed.",
		},
		[]string{LabelService, LabelSaga, LabelTenantID},
	)

	s.sagaStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "saga_step_duration_seconds",
			Help:      "Duration of saga step execution in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelSaga, LabelStep},
	)

	s.approvalsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "approvals_created_total",
			Help:      "Total number of approval gates created.",
		},
		[]string{LabelService, LabelSaga, LabelStep},
	)

	s.approvalsDecided = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "approvals_decided_total",
			Help:      "Total number of approval gate decisions applied.",
		},
		[]string{LabelService, LabelSaga, LabelStep, LabelDecision},
	)
}

// Collectors returns all collectors for registration.
func (s *Sink) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.eventsPublished,
		s.eventsDispatched,
		s.eventsFailed,
		s.handlerDuration,
		s.sagasStarted,
		s.sagasCompleted,
		s.sagasFailed,
		s.sagaStepDuration,
		s.approvalsCreated,
		s.approvalsDecided,
	}
}

// Register registers all collectors with the given registerer.
func (s *Sink) Register(reg prometheus.Registerer) error {
	for _, c := range s.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordMetric routes one engine metric onto its collector. Durations
// arrive in milliseconds and are recorded in seconds. Unknown metric
// names are dropped.
func (s *Sink) RecordMetric(name string, value float64, tags map[string]string) {
	switch name {
	case strand.MetricEventsPublished:
		s.eventsPublished.WithLabelValues(s.serviceName, tags[LabelEventType], tags[LabelTenantID]).Add(value)
	case strand.MetricEventsDispatched:
		s.eventsDispatched.WithLabelValues(s.serviceName, tags[LabelEventType], tags[LabelTenantID], tags[LabelStatus]).Add(value)
	case strand.MetricEventsFailed:
		s.eventsFailed.WithLabelValues(s.serviceName, tags[LabelHandlerID], tags[LabelEventType]).Add(value)
	case strand.MetricHandlerDuration:
		s.handlerDuration.WithLabelValues(s.serviceName, tags[LabelHandlerID], tags[LabelEventType]).Observe(value / 1000)
	case strand.MetricSagaStarted:
		s.sagasStarted.WithLabelValues(s.serviceName, tags[LabelSaga], tags[LabelTenantID]).Add(value)
	case strand.MetricSagaCompleted:
		s.sagasCompleted.WithLabelValues(s.serviceName, tags[LabelSaga], tags[LabelTenantID]).Add(value)
	case strand.MetricSagaFailed:
		s.sagasFailed.WithLabelValues(s.serviceName, tags[LabelSaga], tags[LabelTenantID]).Add(value)
	case strand.MetricSagaStepDuration:
		s.sagaStepDuration.WithLabelValues(s.serviceName, tags[LabelSaga], tags[LabelStep]).Observe(value / 1000)
	case strand.MetricApprovalsCreated:
		s.approvalsCreated.WithLabelValues(s.serviceName, tags[LabelSaga], tags[LabelStep]).Add(value)
	case strand.MetricApprovalsDecided:
		s.approvalsDecided.WithLabelValues(s.serviceName, tags[LabelSaga], tags[LabelStep], tags[LabelDecision]).Add(value)
	}
}
