package middleware

import (
	"context"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// HandlerFunc handles one request. A nil response with a nil error means
// the request was a notification and nothing is sent back.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one sees each request first.
// Nil entries are skipped.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if m := middlewares[i]; m != nil {
				final = m(final)
			}
		}
		return final
	}
}

// reject answers req with perr without calling further handlers.
// Notifications get no answer.
func reject(req *protocol.Request, perr *protocol.Error) (*protocol.Response, error) {
	if req.IsNotification() {
		return nil, nil
	}
	return protocol.NewErrorResponse(req.ID, perr), nil
}
