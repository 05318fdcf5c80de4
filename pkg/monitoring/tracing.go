package monitoring

import (
	"context"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// tracerName is the instrumentation scope name registered with OTel.
const tracerName = "expiration-watcher"

// Tracer is the package-level OTel tracer for the watcher.
// It returns a noop tracer when no TracerProvider is registered.
var Tracer = otel.Tracer(tracerName)

// StartRefreshSpan starts the root span of a snapshot refresh, annotated with
// what triggered it. Callers must call span.End() when the refresh completes.
func StartRefreshSpan(ctx context.Context, trigger string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, "Snapshot.Refresh",
		trace.WithAttributes(attribute.String("refresh.trigger", trigger)),
	)
}

// StartChildSpan starts a child span under the current trace context.
// Use this for sub-operations within a refresh (e.g., Secrets.List).
func StartChildSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, spanName)
}

// RecordSpanError records an error on a span and sets the span status to Error.
// If err is nil, this is a no-op.
func RecordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// EnrichLoggerWithTrace returns a context whose logger carries the trace_id
// and span_id of the span in ctx, so log lines can be joined with traces.
// ctx is returned unchanged when it holds no valid span.
func EnrichLoggerWithTrace(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	logger := log.FromContext(ctx).WithValues(
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)
	return logr.NewContext(ctx, logger)
}
