package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxOrgID   contextKey = "org_id"
	ctxActorID contextKey = "actor_id"
)

// OrgIDFromContext returns the organization the request is scoped to.
func OrgIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxOrgID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// ActorIDFromContext returns the acting user forwarded by the gateway, or
// uuid.Nil when the request carried none.
func ActorIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxActorID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithOrgID injects the organization identifier into the context.
func WithOrgID(ctx context.Context, orgID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOrgID, orgID)
}

// WithActorID injects the actor identifier into the context.
func WithActorID(ctx context.Context, actorID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActorID, actorID)
}
