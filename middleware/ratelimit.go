package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// KeyFunc picks the token bucket a request draws from.
type KeyFunc func(ctx context.Context, req *protocol.Request) string

// RateLimitOption configures RateLimit.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	key    KeyFunc
	logger Logger
}

// WithRateLimitKeyFunc replaces the bucket key. The default is one bucket
// for every request.
func WithRateLimitKeyFunc(fn KeyFunc) RateLimitOption {
	return func(c *rateLimitConfig) { c.key = fn }
}

// WithRateLimitLogger logs each rejected request at warn level.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(c *rateLimitConfig) { c.logger = l }
}

// RateLimit allows rate requests per second per bucket with bursts of up to
// burst, using fortify's token bucket. Requests over the limit are answered
// with CodeRateLimited. ping is never limited so clients can always probe
// liveness.
func RateLimit(rate, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{
		key: func(context.Context, *protocol.Request) string { return "global" },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if req.Method == protocol.MethodPing {
				return next(ctx, req)
			}
			key := cfg.key(ctx, req)
			if limiter.Allow(ctx, key) {
				return next(ctx, req)
			}
			if cfg.logger != nil {
				cfg.logger.Warn("rate limited",
					F("method", req.Method),
					F("bucket", key),
					F("request_id", RequestIDFromContext(ctx)),
				)
			}
			return reject(req, protocol.NewRateLimited("rate limit exceeded"))
		}
	}
}

// RateLimitBySession is RateLimit with one bucket per session. Requests
// that carry no session id share one bucket.
func RateLimitBySession(rate, burst int, opts ...RateLimitOption) Middleware {
	bySession := WithRateLimitKeyFunc(func(ctx context.Context, _ *protocol.Request) string {
		if id := protocol.MetaValue(ctx, MetaSessionID); id != "" {
			return "session:" + id
		}
		return "global"
	})
	return RateLimit(rate, burst, append([]RateLimitOption{bySession}, opts...)...)
}
