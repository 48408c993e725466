package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installRecorder sets a global tracer provider backed by a span recorder.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

func TestTracing_SpanNames(t *testing.T) {
	tests := []struct {
		method       string
		path         string
		expectedName string
	}{
		{http.MethodGet, "/v1/feed", "GET /v1/feed"},
		{http.MethodGet, "/v1/listings/search", "GET /v1/listings/search"},
		{http.MethodOptions, "/v1/feed", "OPTIONS /v1/feed"},
		{http.MethodGet, "/v1/listings/123", "GET unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.expectedName, func(t *testing.T) {
			rec := installRecorder(t)

			handler := Tracing("autolist-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			spans := rec.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			if spans[0].Name() != tt.expectedName {
				t.Errorf("expected span name %q, got %q", tt.expectedName, spans[0].Name())
			}
		})
	}
}

func TestTracing_SkipsProbes(t *testing.T) {
	rec := installRecorder(t)

	handler := Tracing("autolist-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if n := len(rec.Ended()); n != 0 {
		t.Errorf("expected no spans for probes, got %d", n)
	}
}

func TestTracing_PropagatesContext(t *testing.T) {
	rec := installRecorder(t)

	var traceID, spanID string
	handler := Tracing("autolist-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
		spanID = GetSpanID(r)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/feed", nil))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != traceID || traceID == "" {
		t.Errorf("trace ID mismatch: span %s, handler %q", got, traceID)
	}
	if got := spans[0].SpanContext().SpanID().String(); got != spanID || spanID == "" {
		t.Errorf("span ID mismatch: span %s, handler %q", got, spanID)
	}
}

func TestGetTraceAndSpanID_NoActiveSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	if id := GetTraceID(req); id != "" {
		t.Errorf("expected empty trace ID, got %q", id)
	}
	if id := GetSpanID(req); id != "" {
		t.Errorf("expected empty span ID, got %q", id)
	}
}
