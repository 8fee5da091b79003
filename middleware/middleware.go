package middleware

import "time"

// StackOptions selects the middleware Stack assembles. Zero values leave
// the matching layer out.
type StackOptions struct {
	Logger Logger

	// ServiceName enables OTel tracing and metrics under that name.
	ServiceName string

	MaxRequestBytes int64

	// RateLimit is requests per second per session; Burst defaults to it.
	RateLimit int
	Burst     int

	Timeout time.Duration
}

// Stack returns the server's middleware in order, outermost first.
//
// Recovery and request IDs always run first so every later layer sees an
// ID. Logging wraps the limits so rejected and timed out requests are
// still logged with their error response.
func Stack(o StackOptions) []Middleware {
	logger := o.Logger
	if logger == nil {
		logger = NopLogger{}
	}

	s := []Middleware{RecoverWithLogger(logger), RequestID()}
	if o.ServiceName != "" {
		s = append(s, OTel(WithOTelServiceName(o.ServiceName)))
	}
	s = append(s, Logging(logger))

	if o.MaxRequestBytes > 0 {
		s = append(s, SizeLimit(o.MaxRequestBytes))
	}
	if o.RateLimit > 0 {
		burst := o.Burst
		if burst <= 0 {
			burst = o.RateLimit
		}
		s = append(s, RateLimitBySession(o.RateLimit, burst, WithRateLimitLogger(logger)))
	}
	if o.Timeout > 0 {
		s = append(s, Timeout(o.Timeout))
	}
	return s
}

// DefaultStack is Stack with only a logger: recovery, request IDs and
// logging.
func DefaultStack(logger Logger) []Middleware {
	return Stack(StackOptions{Logger: logger})
}
