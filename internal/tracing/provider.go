// Package tracing exports one span per work item over OTLP and propagates W3C
// trace context into outgoing requests.
package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/volley/internal/config"
)

const (
	instrumentationName = "github.com/torosent/volley"
	defaultServiceName  = "volley"
)

// RunInfo describes the batch every exported span belongs to. It is attached
// to the trace resource.
type RunInfo struct {
	ID          string
	Items       int
	Concurrency int
	Target      string
}

func (r RunInfo) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("volley.batch.items", r.Items),
		attribute.Int("volley.batch.concurrency", r.Concurrency),
	}
	if r.ID != "" {
		attrs = append(attrs, attribute.String("volley.run_id", r.ID))
	}
	if r.Target != "" {
		attrs = append(attrs, attribute.String("volley.target", r.Target))
	}
	return attrs
}

// Provider owns the tracer used by executors for one run.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Option customizes Init.
type Option func(*initOptions)

type initOptions struct {
	exporter sdktrace.SpanExporter
}

// WithSyncExporter exports every span synchronously to exp instead of an
// OTLP endpoint. Tracing is enabled even without an endpoint.
func WithSyncExporter(exp sdktrace.SpanExporter) Option {
	return func(o *initOptions) {
		o.exporter = exp
	}
}

// Init builds the provider for one run. Without an endpoint (and without an
// injected exporter) the provider hands out a no-op tracer.
func Init(ctx context.Context, cfg config.TracingConfig, run RunInfo, opts ...Option) (*Provider, error) {
	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !cfg.Enabled() && o.exporter == nil {
		return &Provider{}, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithAttributes(run.attributes()...),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	sampler, err := samplerFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	if o.exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(o.exporter))
	} else {
		exporter, err := newExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("tracing exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: cfg.Propagate,
	}, nil
}

// samplerFor maps a ratio onto a sampler: 1 samples everything, 0 nothing.
func samplerFor(ratio float64) (sdktrace.Sampler, error) {
	switch {
	case ratio < 0 || ratio > 1:
		return nil, fmt.Errorf("tracing sample rate must be between 0.0 and 1.0, got %g", ratio)
	case ratio == 0:
		return sdktrace.NeverSample(), nil
	case ratio == 1:
		return sdktrace.AlwaysSample(), nil
	default:
		return sdktrace.TraceIDRatioBased(ratio), nil
	}
}

// Tracer returns the run's tracer, or a no-op tracer when tracing is off.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether requests carry traceparent headers. It is
// false whenever no spans are recorded.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.tp != nil && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func newExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	switch protocol := strings.ToLower(cfg.Protocol); protocol {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q (grpc, http)", protocol)
	}
}
