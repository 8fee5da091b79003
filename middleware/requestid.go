package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// RequestID returns middleware that gives every request a UUID, stored as
// protocol.MetaRequestID. An ID already present, for example one an HTTP
// caller sent in X-Request-Id, is kept.
func RequestID() Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator is RequestID with a custom ID source.
func RequestIDWithGenerator(next func() string) Middleware {
	return func(h HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, next())
			}
			return h(ctx, req)
		}
	}
}

// RequestIDFromContext returns the request's ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return protocol.MetaValue(ctx, protocol.MetaRequestID)
}

// ContextWithRequestID sets the request ID on ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return protocol.WithMeta(ctx, protocol.MetaRequestID, id)
}
