package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// PanicHandler turns a recovered panic value into the request's outcome.
type PanicHandler func(ctx context.Context, req *protocol.Request, recovered any) (*protocol.Response, error)

// Recover converts handler panics into internal error responses. The
// panic value is not sent to the caller.
func Recover() Middleware {
	return RecoverWithHandler(panicResponse)
}

// RecoverWithLogger is Recover that also logs the panic value and stack.
func RecoverWithLogger(logger Logger) Middleware {
	return RecoverWithHandler(func(ctx context.Context, req *protocol.Request, recovered any) (*protocol.Response, error) {
		logger.Error("handler panicked",
			F("method", req.Method),
			F("target", req.Target()),
			F("request_id", RequestIDFromContext(ctx)),
			F("panic", fmt.Sprint(recovered)),
			F("stack", string(debug.Stack())),
		)
		return panicResponse(ctx, req, recovered)
	})
}

// RecoverWithHandler calls handler for any panic below it.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (resp *protocol.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = handler(ctx, req, r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func panicResponse(_ context.Context, req *protocol.Request, _ any) (*protocol.Response, error) {
	return reject(req, protocol.NewInternalError("internal error"))
}
