package tracing_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/volley/internal/config"
	"github.com/torosent/volley/internal/tracing"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, tp.Tracer("test")
}

func TestInitDisabledByDefault(t *testing.T) {
	p, err := tracing.Init(context.Background(), config.TracingConfig{}, tracing.RunInfo{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when tracing disabled")
	}

	_, span := p.Tracer().Start(context.Background(), "test")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled provider produced a recording span")
	}
}

func TestInitWithEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
	}{
		{"grpc", "grpc"},
		{"http", "http"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tracing.Init(context.Background(), config.TracingConfig{
				Endpoint:   "localhost:4317",
				Protocol:   tt.protocol,
				Insecure:   true,
				SampleRate: 0.5,
				Propagate:  true,
			}, tracing.RunInfo{ID: "01RUN", Items: 3})
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
			if !p.ShouldPropagate() {
				t.Error("ShouldPropagate() = false, want true")
			}
		})
	}
}

func TestInitUnsupportedProtocol(t *testing.T) {
	_, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint: "localhost:4317",
		Protocol: "kafka",
	}, tracing.RunInfo{})
	if err == nil {
		t.Fatal("expected error for unsupported protocol")
	}
}

func TestInitRejectsSampleRateOutOfRange(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	_, err := tracing.Init(context.Background(), config.TracingConfig{SampleRate: 1.5}, tracing.RunInfo{},
		tracing.WithSyncExporter(exporter))
	if err == nil {
		t.Fatal("expected error for sample rate 1.5")
	}
}

func TestInitStampsRunOnResource(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p, err := tracing.Init(context.Background(),
		config.TracingConfig{SampleRate: 1, Propagate: true, ServiceName: "batch-runner"},
		tracing.RunInfo{ID: "01HRUN", Items: 4, Concurrency: 2, Target: "http://example.com/"},
		tracing.WithSyncExporter(exporter),
	)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if !p.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true")
	}

	_, span := tracing.StartItemSpan(context.Background(), p.Tracer(), "req0", "GET", "http://example.com/")
	tracing.EndSpan(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	want := map[string]string{
		"service.name":             "batch-runner",
		"volley.run_id":            "01HRUN",
		"volley.batch.items":       "4",
		"volley.batch.concurrency": "2",
		"volley.target":            "http://example.com/",
	}
	got := map[string]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("resource %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestInitSampleRateZeroRecordsNothing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p, err := tracing.Init(context.Background(), config.TracingConfig{SampleRate: 0}, tracing.RunInfo{},
		tracing.WithSyncExporter(exporter))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := p.Tracer().Start(context.Background(), "req0")
	span.End()
	if n := len(exporter.GetSpans()); n != 0 {
		t.Fatalf("spans = %d, want 0", n)
	}
}

func TestNilProviderSafety(t *testing.T) {
	var p *tracing.Provider
	if p.ShouldPropagate() {
		t.Error("nil provider ShouldPropagate() = true, want false")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown() error = %v", err)
	}
	_, span := p.Tracer().Start(context.Background(), "test")
	span.End()
}

func TestStartItemSpanAndAttempts(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracing.StartItemSpan(context.Background(), tracer, "req0", "GET", "https://example.com")
	tracing.RecordAttempt(span, 1, 503, "protocol")
	tracing.RecordAttempt(span, 2, 0, "timeout")
	tracing.RecordAttempt(span, 3, 200, "")
	tracing.EndSpan(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "GET req0" {
		t.Errorf("span name = %q, want %q", got.Name, "GET req0")
	}
	if got.SpanKind != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", got.SpanKind)
	}
	if len(got.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(got.Events))
	}
	for _, ev := range got.Events {
		if ev.Name != "attempt" {
			t.Errorf("event name = %q, want attempt", ev.Name)
		}
	}
	if got.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", got.Status.Code)
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-error")
	tracing.EndSpan(span, errors.New("HTTP 503"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status code = %d, want %d (Error)", spans[0].Status.Code, codes.Error)
	}
}

func TestInjectHTTPHeaders(t *testing.T) {
	_, tracer := setupTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "test-inject")
	defer span.End()

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, headers)

	got := headers.Get("Traceparent")
	if len(got) < 55 {
		t.Errorf("traceparent header = %q, want W3C value", got)
	}
}

func TestInjectHTTPHeadersNoSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
	))
	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)

	if got := headers.Get("Traceparent"); got != "" {
		t.Errorf("traceparent = %q, want empty without an active span", got)
	}
}
