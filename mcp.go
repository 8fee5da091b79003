// Package mcp builds MCP servers: register tools, resources and prompts on
// a Server, then serve it over stdio, HTTP or WebSocket.
//
//	srv := mcp.NewServer(mcp.ServerInfo{Name: "my-server", Version: "1.0.0"})
//
//	type SearchInput struct {
//	    Query string `json:"query" jsonschema:"required,description=What to look for"`
//	}
//
//	err := srv.Tool("search").
//	    Description("Search for items").
//	    Handler(mcp.TypedTool(func(ctx context.Context, in SearchInput) (*mcp.ToolResult, error) {
//	        return mcp.TextResult("found: " + in.Query), nil
//	    }))
//
//	err = mcp.ServeStdio(ctx, srv)
//
// Registration is closed once the first session starts.
package mcp

import (
	"context"
	"time"

	"github.com/fast-ish/mcp-server-template/middleware"
	"github.com/fast-ish/mcp-server-template/protocol"
	"github.com/fast-ish/mcp-server-template/server"
	"github.com/fast-ish/mcp-server-template/transport"
)

type (
	ServerInfo   = server.Info
	Capabilities = server.Capabilities
	Server       = server.Server
	Option       = server.Option
	Session      = server.Session

	ToolResult      = server.ToolResult
	ToolHandler     = server.ToolHandler
	ResourceInfo    = server.ResourceInfo
	ResourceHandler = server.ResourceHandler
	ResourceLister  = server.ResourceLister
	PromptResult    = server.PromptResult
	PromptHandler   = server.PromptHandler

	ResourceContents = protocol.ResourceContents
	PromptMessage    = protocol.PromptMessage
)

type (
	Middleware = middleware.Middleware
	Logger     = middleware.Logger
	LogField   = middleware.Field
)

var (
	TextResult       = server.TextResult
	ErrorResult      = server.ErrorResult
	UserMessage      = server.UserMessage
	WithInstructions = server.WithInstructions
)

// TypedTool binds a tool handler to the input struct In. The input schema
// is generated from In's fields and arguments are validated against it
// before fn runs.
func TypedTool[In any](fn func(ctx context.Context, in In) (*ToolResult, error)) ToolHandler {
	return server.TypedTool(fn)
}

// TypedPrompt binds a prompt handler to the argument struct In.
func TypedPrompt[In any](fn func(ctx context.Context, in In) (*PromptResult, error)) PromptHandler {
	return server.TypedPrompt(fn)
}

// NewServer creates a new MCP server with the given info and options.
func NewServer(info ServerInfo, opts ...Option) *Server {
	return server.New(info, opts...)
}

// ServeOption configures how the server is run.
type ServeOption func(*serveOptions)

type serveOptions struct {
	middleware []Middleware
}

// WithMiddleware adds middleware around every session's request handling.
func WithMiddleware(m ...Middleware) ServeOption {
	return func(o *serveOptions) {
		o.middleware = append(o.middleware, m...)
	}
}

// WithLogger installs the default stack (recover, request id, logging)
// writing to l.
func WithLogger(l Logger) ServeOption {
	return WithMiddleware(middleware.DefaultStack(l)...)
}

// Sessions returns a factory that opens a new Session on srv for every
// connection, wrapped in the configured middleware.
func Sessions(srv *Server, opts ...ServeOption) transport.SessionFactory {
	options := &serveOptions{}
	for _, opt := range opts {
		opt(options)
	}
	chain := middleware.Chain(options.middleware...)

	return func() transport.Handler {
		session := server.NewSession(srv)
		return &sessionHandler{
			Session: session,
			handle:  chain(session.HandleRequest),
		}
	}
}

// sessionHandler runs a Session behind middleware. ID and Close come from
// the embedded Session so transports can name and close it.
type sessionHandler struct {
	*server.Session
	handle middleware.HandlerFunc
}

func (h *sessionHandler) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return h.handle(ctx, req)
}

// Serve runs srv on t until ctx is canceled or the transport fails.
func Serve(ctx context.Context, t transport.Transport, srv *Server, opts ...ServeOption) error {
	return t.Serve(ctx, Sessions(srv, opts...))
}

// ServeStdio runs the server on stdin/stdout.
func ServeStdio(ctx context.Context, srv *Server, opts ...ServeOption) error {
	return Serve(ctx, transport.NewStdio(), srv, opts...)
}

// HTTPOption configures the HTTP transport.
type HTTPOption = transport.HTTPOption

// ServeHTTP runs the server as an HTTP endpoint on addr.
func ServeHTTP(ctx context.Context, srv *Server, addr string, httpOpts []HTTPOption, opts ...ServeOption) error {
	return Serve(ctx, transport.NewHTTP(addr, httpOpts...), srv, opts...)
}

// WebSocketOption configures the WebSocket transport.
type WebSocketOption = transport.WebSocketOption

// ServeWebSocket runs the server as a WebSocket endpoint on addr.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, wsOpts []WebSocketOption, opts ...ServeOption) error {
	return Serve(ctx, transport.NewWebSocket(addr, wsOpts...), srv, opts...)
}

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return transport.WithReadTimeout(d)
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return transport.WithWriteTimeout(d)
}
