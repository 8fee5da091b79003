package middleware

import (
	"context"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// Byte sizes for SizeLimit.
const (
	KB = 1 << 10
	MB = 1 << 20
)

// SizeLimitOption configures SizeLimit.
type SizeLimitOption func(*sizeLimitConfig)

type sizeLimitConfig struct {
	logger Logger
}

// WithSizeLimitLogger logs each rejected request at warn level.
func WithSizeLimitLogger(l Logger) SizeLimitOption {
	return func(c *sizeLimitConfig) { c.logger = l }
}

// SizeLimit rejects requests whose params exceed maxBytes with an invalid
// request error. The transports bound whole messages; this bounds what
// reaches tool and prompt argument decoding. maxBytes <= 0 disables it.
func SizeLimit(maxBytes int64, opts ...SizeLimitOption) Middleware {
	cfg := &sizeLimitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next HandlerFunc) HandlerFunc {
		if maxBytes <= 0 {
			return next
		}
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			size := int64(len(req.Params))
			if size <= maxBytes {
				return next(ctx, req)
			}
			if cfg.logger != nil {
				cfg.logger.Warn("params too large",
					F("method", req.Method),
					F("size", size),
					F("limit", maxBytes),
					F("request_id", RequestIDFromContext(ctx)),
				)
			}
			return reject(req, protocol.Errorf(protocol.CodeInvalidRequest,
				"params of %d bytes exceed the %d byte limit", size, maxBytes))
		}
	}
}
