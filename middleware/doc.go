// Package middleware wraps a session's request handling.
//
// Stack assembles the server's production chain from a few options:
//
//	handler := middleware.Chain(middleware.Stack(middleware.StackOptions{
//	    Logger:      middleware.NewSlogLogger(slog.Default()),
//	    ServiceName: "mcp-server",
//	    RateLimit:   20,
//	    Timeout:     30 * time.Second,
//	})...)(session.HandleRequest)
//
// Middleware that refuses a request answers it with a JSON-RPC error
// response and drops refused notifications silently. Only Recover and
// Timeout rewrite what the handler returned.
//
// Transports attach the session ID and transport name as protocol.Meta.
// RequestID adds a request ID alongside them, and Logging, OTel and
// RateLimitBySession read all three from there.
package middleware
