package tracer

import (
	"context"

	"github.com/ehudso7/vrux-observe/pkg/models"
)

// spanKey is the context key for the active local span.
type spanKey struct{}

// remoteKey is the context key for a trace context extracted from the wire.
type remoteKey struct{}

// ContextWithSpan returns a new context with span as the active span.
func ContextWithSpan(ctx context.Context, span *models.Span) context.Context {
	return context.WithValue(ctx, spanKey{}, span)
}

// SpanFromContext returns the active span in ctx, if any.
func SpanFromContext(ctx context.Context) (*models.Span, bool) {
	span, ok := ctx.Value(spanKey{}).(*models.Span)
	if !ok || span == nil {
		return nil, false
	}

	return span, true
}

// ContextWithRemote returns a new context carrying a trace context received
// from another process. A subsequent StartSpan continues that trace.
func ContextWithRemote(ctx context.Context, tc models.TraceContext) context.Context {
	return context.WithValue(ctx, remoteKey{}, tc)
}

// RemoteFromContext returns the remote trace context in ctx, if any.
func RemoteFromContext(ctx context.Context) (models.TraceContext, bool) {
	tc, ok := ctx.Value(remoteKey{}).(models.TraceContext)
	if !ok || tc.TraceID == "" {
		return models.TraceContext{}, false
	}

	return tc, true
}

// TraceContextFromContext derives the wire-ready trace context for ctx:
// the active local span when present, otherwise any remote context.
func TraceContextFromContext(ctx context.Context) (models.TraceContext, bool) {
	if span, ok := SpanFromContext(ctx); ok {
		return models.TraceContext{
			TraceID:      span.TraceID,
			SpanID:       span.SpanID,
			ParentSpanID: span.ParentSpanID,
			Sampled:      true,
		}, true
	}

	return RemoteFromContext(ctx)
}
