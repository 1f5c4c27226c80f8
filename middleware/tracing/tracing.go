// Package tracing provides OpenTelemetry integration for event
// handlers and saga steps.
//
// Basic usage:
//
//	tp := sdktrace.NewTracerProvider(...)
//	otel.SetTracerProvider(tp)
//
//	tracer := tracing.NewTracer()
//	bus.Subscribe("invoice.created", "billing-projector",
//		tracing.WrapHandler(tracer, "billing-projector", projectInvoice))
//
// Spans capture the event type, tenant, trace and correlation IDs and
// the handler or step outcome. The event metadata's trace ID is
// attached as an attribute so engine traces can be joined with the
// event audit log.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	strand "github.com/AshkanYarmoradi/go-strand"
)

const (
	// TracerName is the name of the strand tracer.
	TracerName = "github.com/AshkanYarmoradi/go-strand"

	// DefaultServiceName is the default service name for spans.
	DefaultServiceName = "strand"
)

// Tracer wraps an OpenTelemetry tracer for engine operations.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithTracerProvider sets a custom TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(t *Tracer) {
		t.tracer = tp.Tracer(TracerName)
	}
}

// WithServiceName sets the service name for spans.
func WithServiceName(name string) TracerOption {
	return func(t *Tracer) {
		t.serviceName = name
	}
}

// NewTracer creates a new Tracer with the global TracerProvider.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		tracer:      otel.Tracer(TracerName),
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Tracer returns the underlying OpenTelemetry tracer.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// ServiceName returns the configured service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// WrapHandler wraps an event handler so each invocation runs inside a
// span named after the event type.
func WrapHandler(tracer *Tracer, handlerID string, handler strand.Handler) strand.Handler {
	return func(ctx context.Context, event strand.Event) error {
		spanName := fmt.Sprintf("event.%s", event.Type)

		ctx, span := tracer.StartSpan(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindConsumer),
		)
		defer span.End()

		span.SetAttributes(eventAttributes(tracer, event)...)
		span.SetAttributes(attribute.String("strand.handler.id", handlerID))

		err := handler(ctx, event)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		span.SetStatus(codes.Ok, "")
		return nil
	}
}

// WrapExecute wraps a saga step body so each execution runs inside a
// span named after the saga and step.
func WrapExecute(tracer *Tracer, sagaName, stepName string, fn strand.ExecuteFunc) strand.ExecuteFunc {
	return func(ctx context.Context, sagaCtx map[string]any, event strand.Event) (map[string]any, error) {
		spanName := fmt.Sprintf("saga.%s.%s", sagaName, stepName)

		ctx, span := tracer.StartSpan(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		span.SetAttributes(eventAttributes(tracer, event)...)
		span.SetAttributes(
			attribute.String("strand.saga.name", sagaName),
			attribute.String("strand.saga.step", stepName),
		)

		result, err := fn(ctx, sagaCtx, event)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}

		span.SetStatus(codes.Ok, "")
		return result, nil
	}
}

// WrapCompensate wraps a compensation so each rollback runs inside a
// span named after the saga and step.
func WrapCompensate(tracer *Tracer, sagaName, stepName string, fn strand.CompensateFunc) strand.CompensateFunc {
	return func(ctx context.Context, sagaCtx map[string]any, event strand.Event) error {
		spanName := fmt.Sprintf("saga.%s.%s.compensate", sagaName, stepName)

		ctx, span := tracer.StartSpan(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		span.SetAttributes(eventAttributes(tracer, event)...)
		span.SetAttributes(
			attribute.String("strand.saga.name", sagaName),
			attribute.String("strand.saga.step", stepName),
		)

		err := fn(ctx, sagaCtx, event)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		span.SetStatus(codes.Ok, "")
		return nil
	}
}

func eventAttributes(tracer *Tracer, event strand.Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("strand.service", tracer.serviceName),
		attribute.String("strand.event.id", event.ID),
		attribute.String("strand.event.type", event.Type),
		attribute.String("strand.tenant.id", event.TenantID),
	}
	if event.Metadata.TraceID != "" {
		attrs = append(attrs, attribute.String("strand.trace.id", event.Metadata.TraceID))
	}
	if event.Metadata.CorrelationID != "" {
		attrs = append(attrs, attribute.String("strand.correlation.id", event.Metadata.CorrelationID))
	}
	return attrs
}
