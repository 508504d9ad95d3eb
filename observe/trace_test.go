package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTestTracer installs an in-memory tracer provider for the test.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestTraceIDEmptyByDefault(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}
}

func TestStartSpan(t *testing.T) {
	exp := useTestTracer(t)

	ctx, span := StartSpan(context.Background(), "session")
	if id := TraceID(ctx); len(id) != 32 {
		t.Errorf("trace ID = %q, want 32 hex chars", id)
	}
	EndSpan(span, nil)

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "session" {
		t.Fatalf("spans = %v", spans)
	}
	if spans[0].Status.Code == codes.Error {
		t.Error("successful span marked as error")
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exp := useTestTracer(t)

	_, span := StartSpan(context.Background(), "finalize")
	EndSpan(span, errors.New("too short"))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "too short" {
		t.Errorf("status = %+v", spans[0].Status)
	}
	if len(spans[0].Events) == 0 {
		t.Error("error event not recorded")
	}
}
