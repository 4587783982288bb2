package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type failingExporter struct {
	calls int
}

func (f *failingExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	f.calls++
	return errors.New("collector unavailable")
}

func (f *failingExporter) Shutdown(context.Context) error { return nil }

func TestLoggingExporterForwards(t *testing.T) {
	inner := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(&loggingExporter{inner: inner}))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "agent.prompt")
	span.End()

	spans := inner.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.prompt", spans[0].Name)
}

func TestLoggingExporterReturnsInnerError(t *testing.T) {
	inner := &failingExporter{}
	e := &loggingExporter{inner: inner}

	err := e.ExportSpans(context.Background(), nil)
	assert.EqualError(t, err, "collector unavailable")
	assert.Equal(t, 1, inner.calls)
}

func TestTracerBeforeInit(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, span)
}
