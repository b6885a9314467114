package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope of every aibridge span.
const tracerName = "github.com/MrWong99/aibridge"

// Span attribute keys for provider calls. The gen_ai keys follow the OTel
// generative AI conventions so traces line up with other instrumented
// clients.
const (
	AttrProvider  = attribute.Key("aibridge.provider")
	AttrOperation = attribute.Key("gen_ai.operation.name")
	AttrModel     = attribute.Key("gen_ai.request.model")
	AttrBatchSize = attribute.Key("aibridge.batch_size")
)

// Tracer returns the aibridge tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller ends it, usually through
// [EndSpan].
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartProviderSpan starts a client span for one call of kind (one of the
// Kind constants) against provider and model. Extra attributes are appended.
func StartProviderSpan(ctx context.Context, kind, provider, model string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{
		AttrOperation.String(kind),
		AttrProvider.String(provider),
		AttrModel.String(model),
	}, extra...)
	return Tracer().Start(ctx, "aibridge."+kind+" "+provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan ends span, marking it failed when err is non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CorrelationID returns the trace ID of the span in ctx, or "" without one.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}

// ProviderLogger is [Logger] with the provider and model of a call attached.
func ProviderLogger(ctx context.Context, provider, model string) *slog.Logger {
	return Logger(ctx).With(slog.String("provider", provider), slog.String("model", model))
}
