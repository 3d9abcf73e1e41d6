package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartItemSpan starts the span covering every attempt of one work item.
func StartItemSpan(ctx context.Context, tracer trace.Tracer, name, method, target string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, method+" "+name,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", target),
		attribute.String("volley.item", name),
	)
	return ctx, span
}

// RecordAttempt adds an "attempt" event. status is 0 when no response arrived.
func RecordAttempt(span trace.Span, attempt, status int, kind string) {
	attrs := []attribute.KeyValue{attribute.Int("volley.attempt", attempt)}
	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String("error.type", kind))
	}
	span.AddEvent("attempt", trace.WithAttributes(attrs...))
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
