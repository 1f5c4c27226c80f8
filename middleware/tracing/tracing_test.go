package tracing

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	strand "github.com/AshkanYarmoradi/go-strand"
)

// newRecordingTracer builds a Tracer backed by an in-memory span
// recorder.
func newRecordingTracer(t *testing.T, opts ...TracerOption) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	opts = append([]TracerOption{WithTracerProvider(tp)}, opts...)
	return NewTracer(opts...), recorder
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestNewTracer_Defaults(t *testing.T) {
	tracer := NewTracer()

	assert.Equal(t, DefaultServiceName, tracer.ServiceName())
	assert.NotNil(t, tracer.Tracer())
}

func TestWrapHandler_Success(t *testing.T) {
	tracer, recorder := newRecordingTracer(t, WithServiceName("checkout"))

	handler := WrapHandler(tracer, "billing-projector", func(ctx context.Context, event strand.Event) error {
		return nil
	})

	event := strand.NewEvent("invoice.created", "tenant-a", nil,
		strand.WithCorrelationID("corr-1"),
	)
	err := handler(context.Background(), event)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "event.invoice.created", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := attrMap(span)
	assert.Equal(t, "checkout", attrs["strand.service"].AsString())
	assert.Equal(t, "invoice.created", attrs["strand.event.type"].AsString())
	assert.Equal(t, "tenant-a", attrs["strand.tenant.id"].AsString())
	assert.Equal(t, "billing-projector", attrs["strand.handler.id"].AsString())
	assert.Equal(t, "corr-1", attrs["strand.correlation.id"].AsString())
}

func TestWrapHandler_Error(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)
	boom := errors.New("projection failed")

	handler := WrapHandler(tracer, "billing-projector", func(ctx context.Context, event strand.Event) error {
		return boom
	})

	err := handler(context.Background(), strand.NewEvent("invoice.created", "tenant-a", nil))
	assert.ErrorIs(t, err, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "projection failed", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestWrapExecute(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	execute := WrapExecute(tracer, "order-fulfillment", "charge", func(ctx context.Context, sagaCtx map[string]any, event strand.Event) (map[string]any, error) {
		return map[string]any{"charged": true}, nil
	})

	result, err := execute(context.Background(), map[string]any{}, strand.NewEvent("order.created", "tenant-a", nil))
	require.NoError(t, err)
	assert.Equal(t, true, result["charged"])

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "saga.order-fulfillment.charge", spans[0].Name())

	attrs := attrMap(spans[0])
	assert.Equal(t, "order-fulfillment", attrs["strand.saga.name"].AsString())
	assert.Equal(t, "charge", attrs["strand.saga.step"].AsString())
}

func TestWrapCompensate(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)
	boom := errors.New("refund failed")

	compensate := WrapCompensate(tracer, "order-fulfillment", "charge", func(ctx context.Context, sagaCtx map[string]any, event strand.Event) error {
		return boom
	})

	err := compensate(context.Background(), map[string]any{}, strand.NewEvent("order.created", "tenant-a", nil))
	assert.ErrorIs(t, err, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "saga.order-fulfillment.charge.compensate", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestWrapHandler_StdoutExporter(t *testing.T) {
	// Sanity check against a real exporter pipeline.
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(io.Discard))
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := NewTracer(WithTracerProvider(tp))
	handler := WrapHandler(tracer, "audit", func(ctx context.Context, event strand.Event) error {
		return nil
	})

	err = handler(context.Background(), strand.NewEvent("invoice.created", "tenant-a", nil))
	assert.NoError(t, err)
}
