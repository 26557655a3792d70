// Package obscontext carries request-scoped correlation data for logging and
// tracing without importing the HTTP layer.
package obscontext

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type actorKey struct{}

type actor struct {
	role string
	id   string
}

// WithRequestID stores the request correlation ID on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// EnsureRequestID guarantees a correlation ID, generating a ULID when absent.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return WithRequestID(ctx, id), id
}

// WithActor records who is acting on this request (e.g. "admin", "reseller").
func WithActor(ctx context.Context, role, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{role: role, id: id})
}

// ActorFromContext returns the actor role and id, or empty strings.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a.role, a.id
}
