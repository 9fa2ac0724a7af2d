package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/getmentor/getmentor-sessions/config"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	if err := logger.Initialize(logger.Config{Level: "debug", Environment: "development"}); err != nil {
		panic(err)
	}
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := tracer
	tracer = tp.Tracer(instrumentationName)
	t.Cleanup(func() { tracer = prev })
	return recorder
}

func TestInitTracer_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(&config.Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Contains(t, newSampler(0.25).Description(), "ParentBased")
}

func TestStartServiceSpan_RecordsErrors(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartServiceSpan(context.Background(), "sessions", "book")
	EndSpan(span, errors.New("slot taken"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "sessions.book", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
}

func TestStartBackgroundSpan_IsNewRoot(t *testing.T) {
	recorder := withRecorder(t)

	parentCtx, parent := StartSpan(context.Background(), "request")
	_, sweep := StartBackgroundSpan(parentCtx, "sweep.run")
	EndSpan(sweep, nil)
	parent.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.False(t, ended[0].Parent().IsValid())
	assert.NotEqual(t, parent.SpanContext().TraceID(), ended[0].SpanContext().TraceID())
}
