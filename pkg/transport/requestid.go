package transport

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID, or "" if none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID returns a copy of ctx carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns middleware that gives every chat turn a request ID.
// An ID already in the context, such as one the HTTP adapter took from
// X-Request-ID, is kept.
func RequestID() Middleware {
	return func(next ChatRunner) ChatRunner {
		return ChatRunnerFunc(func(ctx context.Context, userID, message string, w EventWriter) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, newRequestID())
			}
			next.Run(ctx, userID, message, w)
		})
	}
}

// newRequestID returns 32 lowercase hex characters.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
