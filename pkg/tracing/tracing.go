// Package tracing wires OpenTelemetry for request handlers, service
// operations and background sweeps.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/getmentor/getmentor-sessions/config"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/getmentor/getmentor-sessions"

var tracer trace.Tracer

// InitTracer installs the global tracer provider exporting to the OTLP
// collector. With no endpoint configured tracing stays a no-op.
func InitTracer(cfg *config.Config) (func(context.Context) error, error) {
	o := cfg.Observability
	if o.AlloyEndpoint == "" {
		logger.Info("Tracing disabled: O11Y_EXPORTER_ENDPOINT not set")
		return func(context.Context) error { return nil }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// the collector sits on the internal network
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(o.AlloyEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(o.ServiceName),
		semconv.ServiceNamespace(o.ServiceNamespace),
		semconv.ServiceVersion(o.ServiceVersion),
		semconv.ServiceInstanceID(o.ServiceInstanceID),
		attribute.String("deployment.environment.name", cfg.Server.AppEnv),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter,
		sdktrace.WithBatchTimeout(2*time.Second),
		sdktrace.WithExportTimeout(5*time.Second),
		sdktrace.WithMaxQueueSize(2048),
		sdktrace.WithMaxExportBatchSize(512),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bsp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(o.TraceSampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracer = tp.Tracer(instrumentationName)

	logger.Info("OpenTelemetry tracer initialized",
		zap.String("service", o.ServiceName),
		zap.String("endpoint", o.AlloyEndpoint),
		zap.Float64("sample_ratio", o.TraceSampleRatio))

	return tp.Shutdown, nil
}

// newSampler keeps every trace at ratio 1 and otherwise samples root spans by
// trace ID, following the parent decision for propagated traces.
func newSampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// StartSpan starts a span, or returns the current one when tracing is off
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

// StartServiceSpan starts a span named component.operation tagged with the
// component and attrs.
func StartServiceSpan(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{attribute.String("component", component)}, attrs...)
	return StartSpan(ctx, component+"."+operation, trace.WithAttributes(attrs...))
}

// StartBackgroundSpan starts a new root span for work that is not caused by a
// request, such as a sweep run.
func StartBackgroundSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithNewRoot(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on span (if any) and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
