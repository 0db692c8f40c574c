package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the cache, invalidation and HTTP layers.
var (
	AttrContentType  = attribute.Key("folio.content_type")
	AttrCacheKey     = attribute.Key("folio.cache.key")
	AttrCacheHit     = attribute.Key("folio.cache.hit")
	AttrCachePattern = attribute.Key("folio.cache.pattern")
	AttrEffective    = attribute.Key("folio.cache.effective")
	AttrRequestID    = attribute.Key("folio.request_id")
	AttrAvailability = attribute.Key("folio.kv.availability")
)

// StartSpan starts an internal span. With tracing disabled the span is a
// no-op and costs nothing.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanError marks the span as errored
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the trace ID carried by ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
