package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// Timeout gives each request a deadline of d. A handler that gives up with
// context.DeadlineExceeded is answered with a request timeout error; a
// Session already maps the deadline to that code itself. d <= 0 disables it.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			resp, err := next(ctx, req)
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				return reject(req, protocol.Errorf(protocol.CodeRequestTimeout, "request exceeded %s", d))
			}
			return resp, err
		}
	}
}
