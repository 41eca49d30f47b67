// Package requestctx carries request identity below the HTTP layer so that
// service logs can be tied back to the request that caused them.
package requestctx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Meta identifies the request and, once authenticated, its actor.
type Meta struct {
	RequestID string
	TenantID  string
	ActorID   string
}

func With(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, ctxKey{}, meta)
}

func From(ctx context.Context) Meta {
	meta, _ := ctx.Value(ctxKey{}).(Meta)
	return meta
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	meta := From(ctx)
	meta.RequestID = requestID
	return With(ctx, meta)
}

func WithActor(ctx context.Context, tenantID, actorID string) context.Context {
	meta := From(ctx)
	meta.TenantID = tenantID
	meta.ActorID = actorID
	return With(ctx, meta)
}

func GetRequestID(ctx context.Context) string {
	return From(ctx).RequestID
}

// Logger returns the default logger tagged with whatever identity ctx holds.
func Logger(ctx context.Context) *slog.Logger {
	meta := From(ctx)
	logger := slog.Default()
	if meta.RequestID != "" {
		logger = logger.With("requestId", meta.RequestID)
	}
	if meta.TenantID != "" {
		logger = logger.With("tenantId", meta.TenantID)
	}
	if meta.ActorID != "" {
		logger = logger.With("actorId", meta.ActorID)
	}
	return logger
}
