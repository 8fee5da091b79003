package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// State is the lifecycle state of a Session.
type State int32

// Session states. Closed is terminal.
const (
	StateUninitialized State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ClientInfo identifies the connected client, as sent in initialize.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// Session is one client connection's view of a Server. It owns the
// lifecycle state machine and handles requests one at a time, so responses
// leave in arrival order.
type Session struct {
	id         string
	srv        *Server
	dispatcher *Dispatcher

	mu         sync.Mutex // serializes request handling
	state      atomic.Int32
	clientInfo atomic.Pointer[ClientInfo]
}

// NewSession creates a session over srv and seals srv's registries.
func NewSession(srv *Server) *Session {
	srv.Seal()
	return &Session{
		id:         uuid.NewString(),
		srv:        srv,
		dispatcher: NewDispatcher(srv),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// ClientInfo returns the client identity sent during initialize.
func (s *Session) ClientInfo() ClientInfo {
	if ci := s.clientInfo.Load(); ci != nil {
		return *ci
	}
	return ClientInfo{}
}

// Close moves the session to Closed. Later requests are rejected.
func (s *Session) Close() error {
	s.state.Store(int32(StateClosed))
	return nil
}

// HandleRequest processes one request. Notifications produce a nil
// response. Errors are carried in the response; the Go error is always nil.
func (s *Session) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = ContextWithSession(ctx, s)

	if perr := req.Validate(); perr != nil {
		return s.reply(req, nil, perr)
	}

	state := s.State()
	if state == StateClosed {
		return s.reply(req, nil, protocol.NewInvalidRequest("session closed"))
	}

	switch req.Method {
	case protocol.MethodInitialize:
		result, err := s.initialize(req.Params)
		return s.reply(req, result, err)
	case protocol.MethodInitialized:
		return nil, nil
	case protocol.MethodPing:
		return s.reply(req, struct{}{}, nil)
	}

	if req.IsNotification() {
		return nil, nil
	}
	if state != StateRunning {
		return s.reply(req, nil, protocol.NewInvalidRequest("session not initialized"))
	}
	return s.dispatcher.HandleRequest(ctx, req)
}

func (s *Session) reply(req *protocol.Request, result any, err error) (*protocol.Response, error) {
	if req.IsNotification() {
		return nil, nil
	}
	if err != nil {
		return protocol.NewErrorResponse(req.ID, ToProtocolError(err)), nil
	}
	return protocol.NewResponse(req.ID, result), nil
}

func (s *Session) initialize(raw json.RawMessage) (*protocol.InitializeResult, error) {
	if s.State() == StateRunning {
		return nil, protocol.NewInvalidRequest("session already initialized")
	}

	var p initializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, protocol.NewInvalidParams(fmt.Sprintf("invalid params: %v", err))
		}
	}
	s.clientInfo.Store(&p.ClientInfo)

	info := s.srv.Info()
	caps := s.srv.Capabilities()
	capabilities := make(map[string]any)
	if caps.Tools {
		capabilities[protocol.CapabilityTools] = map[string]any{}
	}
	if caps.Resources {
		capabilities[protocol.CapabilityResources] = map[string]any{}
	}
	if caps.Prompts {
		capabilities[protocol.CapabilityPrompts] = map[string]any{}
	}

	s.state.Store(int32(StateRunning))
	return &protocol.InitializeResult{
		ProtocolVersion: protocol.MCPVersion,
		ServerInfo:      protocol.ServerInfo{Name: info.Name, Version: info.Version},
		Capabilities:    capabilities,
		Instructions:    s.srv.Instructions(),
	}, nil
}

// sessionKey is the context key for the active session.
type sessionKey struct{}

// ContextWithSession returns a context with the session attached.
func ContextWithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session from context, or nil if none.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey{}).(*Session)
	return session
}
