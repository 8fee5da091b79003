package protocol

import (
	"context"
	"maps"
)

// Metadata keys set by transports.
const (
	// MetaSessionID names the session a request belongs to.
	MetaSessionID = "session_id"
	// MetaTransport names the transport that carried the request.
	MetaTransport = "transport"
	// MetaRequestID correlates log lines and spans for one request. HTTP
	// callers may supply it; otherwise middleware assigns one.
	MetaRequestID = "request_id"
)

type metaKey struct{}

// Meta is transport-level metadata that travels with a request through
// middleware, such as the session id.
type Meta map[string]string

// MetaFromContext returns the metadata attached to ctx, or nil.
func MetaFromContext(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// MetaValue returns one metadata value, or "" when unset.
func MetaValue(ctx context.Context, key string) string {
	return MetaFromContext(ctx)[key]
}

// WithMeta returns a context carrying key=value in addition to any existing
// metadata. The parent's map is never modified.
func WithMeta(ctx context.Context, key, value string) context.Context {
	m := maps.Clone(MetaFromContext(ctx))
	if m == nil {
		m = make(Meta, 1)
	}
	m[key] = value
	return context.WithValue(ctx, metaKey{}, m)
}
