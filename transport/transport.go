package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// Handler processes incoming MCP requests for one connection.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// HandleRequest calls f(ctx, req).
func (f HandlerFunc) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// SessionFactory returns the handler for a new connection. Transports call
// it once per client: once for stdio, per connection for WebSocket, and per
// initialize for HTTP. If the returned handler implements io.Closer it is
// closed when the connection ends. If it has an ID() string method, that
// ID names the session on the wire and in request metadata.
type SessionFactory func() Handler

// Static returns a SessionFactory that hands out h to every connection.
func Static(h Handler) SessionFactory {
	return func() Handler { return h }
}

// Transport defines the communication layer interface.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an error occurs.
	Serve(ctx context.Context, sessions SessionFactory) error

	// Addr returns the transport's address description.
	Addr() string
}

type identified interface {
	ID() string
}

func sessionID(h Handler) string {
	if s, ok := h.(identified); ok {
		return s.ID()
	}
	return ""
}

func closeSession(h Handler) {
	if c, ok := h.(io.Closer); ok {
		_ = c.Close()
	}
}

// handle runs req through h and turns a returned Go error into an error
// response. It returns nil for notifications. kind names the transport.
func handle(ctx context.Context, kind string, h Handler, id string, req *protocol.Request) *protocol.Response {
	ctx = protocol.WithMeta(ctx, protocol.MetaTransport, kind)
	if id != "" {
		ctx = protocol.WithMeta(ctx, protocol.MetaSessionID, id)
	}

	resp, err := h.HandleRequest(ctx, req)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		var mcpErr *protocol.Error
		if !errors.As(err, &mcpErr) {
			mcpErr = protocol.NewInternalError(err.Error())
		}
		return protocol.NewErrorResponse(req.ID, mcpErr)
	}
	return resp
}

// decode parses one JSON-RPC message. On failure it returns the parse error
// response to send back instead.
func decode(data []byte) (*protocol.Request, *protocol.Response) {
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, protocol.NewErrorResponse(nil, protocol.NewParseError(err.Error()))
	}
	return &req, nil
}
