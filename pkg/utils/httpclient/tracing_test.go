package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func setupTracer(t *testing.T) *sdktrace.TracerProvider {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp
}

func captureTraceparent(t *testing.T, ctx context.Context) string {
	t.Helper()
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("traceparent")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer server.Close()

	if err := NewClient(5*time.Second, 0).PostJSON(ctx, server.URL, nil, struct{}{}, nil); err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	return received
}

// 有 Span 时下游收到 traceparent 头
func TestPostJSON_PropagatesTraceContext(t *testing.T) {
	tp := setupTracer(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "embed")
	defer span.End()

	traceparent := captureTraceparent(t, ctx)
	// W3C 格式：version-trace_id-parent_id-trace_flags
	if len(traceparent) < 55 {
		t.Errorf("traceparent format invalid: %q", traceparent)
	}
}

func TestPostJSON_NoSpanNoHeader(t *testing.T) {
	setupTracer(t)

	if traceparent := captureTraceparent(t, context.Background()); traceparent != "" {
		t.Errorf("expected no traceparent header, got: %s", traceparent)
	}
}
