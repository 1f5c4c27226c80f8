package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	strand "github.com/AshkanYarmoradi/go-strand"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	sink := New(WithMetricsServiceName("checkout"))
	reg := prometheus.NewRegistry()

	err := sink.Register(reg)

	require.NoError(t, err)
	assert.Len(t, sink.Collectors(), 10)
}

func TestSink_RecordMetric_Counters(t *testing.T) {
	sink := New(WithMetricsServiceName("checkout"))
	reg := prometheus.NewRegistry()
	require.NoError(t, sink.Register(reg))

	sink.RecordMetric(strand.MetricEventsPublished, 1, map[string]string{
		LabelEventType: "order.created",
		LabelTenantID:  "tenant-a",
	})
	sink.RecordMetric(strand.MetricEventsPublished, 1, map[string]string{
		LabelEventType: "order.created",
		LabelTenantID:  "tenant-a",
	})
	sink.RecordMetric(strand.MetricEventsDispatched, 1, map[string]string{
		LabelEventType: "order.created",
		LabelTenantID:  "tenant-a",
		LabelStatus:    "completed",
	})

	published := sink.eventsPublished.WithLabelValues("checkout", "order.created", "tenant-a")
	assert.Equal(t, float64(2), testutil.ToFloat64(published))

	dispatched := sink.eventsDispatched.WithLabelValues("checkout", "order.created", "tenant-a", "completed")
	assert.Equal(t, float64(1), testutil.ToFloat64(dispatched))
}

func TestSink_RecordMetric_SagaLifecycle(t *testing.T) {
	sink := New()

	sink.RecordMetric(strand.MetricSagaStarted, 1, map[string]string{
		LabelSaga:     "order-fulfillment",
		LabelTenantID: "tenant-a",
	})
	sink.RecordMetric(strand.MetricSagaFailed, 1, map[string]string{
		LabelSaga:     "order-fulfillment",
		LabelTenantID: "tenant-a",
	})
	sink.RecordMetric(strand.MetricApprovalsDecided, 1, map[string]string{
		LabelSaga:     "payout",
		LabelStep:     "manager-approval",
		LabelDecision: "approved",
	})

	started := sink.sagasStarted.WithLabelValues("unknown", "order-fulfillment", "tenant-a")
	assert.Equal(t, float64(1), testutil.ToFloat64(started))

	failed := sink.sagasFailed.WithLabelValues("unknown", "order-fulfillment", "tenant-a")
	assert.Equal(t, float64(1), testutil.ToFloat64(failed))

	decided := sink.approvalsDecided.WithLabelValues("unknown", "payout", "manager-approval", "approved")
	assert.Equal(t, float64(1), testutil.ToFloat64(decided))
}

func TestSink_RecordMetric_ConvertsDurations(t *testing.T) {
	sink := New()

	// Engine durations arrive in milliseconds.
	sink.RecordMetric(strand.MetricHandlerDuration, 1500, map[string]string{
		LabelHandlerID: "email",
		LabelEventType: "order.created",
	})

	assert.Equal(t, 1, testutil.CollectAndCount(sink.handlerDuration))
}

func TestSink_RecordMetric_UnknownNameDropped(t *testing.T) {
	sink := New()

	assert.NotPanics(t, func() {
		sink.RecordMetric("bogus_metric", 1, nil)
	})
}

func TestSink_NamespaceAndSubsystem(t *testing.T) {
	sink := New(WithNamespace("acme"), WithSubsystem("orders"))
	reg := prometheus.NewRegistry()
	require.NoError(t, sink.Register(reg))

	sink.RecordMetric(strand.MetricEventsPublished, 1, map[string]string{
		LabelEventType: "order.created",
		LabelTenantID:  "tenant-a",
	})

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "acme_orders_events_published_total")
}
