package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpawn opens a span around one worker spawn attempt. Callers must
// call End on the returned span (and RecordError first, on failure).
func (p *Provider) StartSpawn(ctx context.Context, worker string, restartCount uint64) (context.Context, trace.Span) {
	return p.Tracer("procwatchd/registry").Start(ctx, "worker.spawn",
		trace.WithAttributes(
			attribute.String("worker.name", worker),
			attribute.Int64("worker.restart_count", int64(restartCount)),
		),
	)
}

// StartShutdownEscalate opens a span around a shutdown-mode escalation
// (Graceful -> Forced, or the internal fatal-error path triggering it).
func (p *Provider) StartShutdownEscalate(ctx context.Context, fromMode, toMode, reason string) (context.Context, trace.Span) {
	return p.Tracer("procwatchd/shutdown").Start(ctx, "shutdown.escalate",
		trace.WithAttributes(
			attribute.String("shutdown.from_mode", fromMode),
			attribute.String("shutdown.to_mode", toMode),
			attribute.String("shutdown.reason", reason),
		),
	)
}

// EndWithError records err (if non-nil) on span and sets its status
// accordingly before ending it.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
