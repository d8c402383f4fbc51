package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate(), "disabled options are not validated")

	opts.Enabled = true
	assert.Empty(t, opts.Validate())

	opts.ExporterType = "kafka"
	opts.SamplerRatio = 2
	assert.Len(t, opts.Validate(), 2)

	opts = NewOptions()
	opts.Enabled = true
	opts.Endpoint = ""
	assert.Len(t, opts.Validate(), 1)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), NewOptions(), "eurodetective", "test")
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNoop(t *testing.T) {
	opts := NewOptions()
	opts.Enabled = true
	opts.ExporterType = ExporterNoop

	p, err := NewProvider(context.Background(), opts, "eurodetective", "test")
	require.NoError(t, err)
	require.NotNil(t, p.tp)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSpanHelpers(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "turn")
	assert.NotEmpty(t, TraceIDFromContext(ctx))

	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "boom", ended[0].Status().Description)
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
