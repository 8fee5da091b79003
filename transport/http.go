package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// SessionHeader carries the session id issued on initialize. Clients send
// it back on every later request and on DELETE to end the session.
const SessionHeader = "Mcp-Session-Id"

// RequestIDHeader, when present on a POST, becomes the request's ID in
// logs and spans.
const RequestIDHeader = "X-Request-Id"

// DefaultMaxBodyBytes bounds a single HTTP request body.
const DefaultMaxBodyBytes = 4 * 1024 * 1024

// HTTP implements MCP over plain HTTP. Each POST /mcp carries one JSON-RPC
// message; an initialize without a session header starts a new session.
type HTTP struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	drainDelay      time.Duration
	maxBodyBytes    int64
	corsConfig      *CORSConfig

	mu         sync.RWMutex
	listenAddr string
	server     *http.Server

	sessionsMu sync.RWMutex
	sessions   map[string]Handler
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// WithMaxBodyBytes sets the largest request body accepted on /mcp.
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(h *HTTP) {
		h.maxBodyBytes = n
	}
}

// NewHTTP creates a new HTTP transport.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		readTimeout:     30 * time.Second,
		writeTimeout:    60 * time.Second,
		shutdownTimeout: DefaultShutdownTimeout,
		maxBodyBytes:    DefaultMaxBodyBytes,
		sessions:        make(map[string]Handler),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// ListenAddr returns the actual address the server is listening on.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Sessions returns the number of open sessions.
func (h *HTTP) Sessions() int {
	h.sessionsMu.RLock()
	defer h.sessionsMu.RUnlock()
	return len(h.sessions)
}

// Serve starts the HTTP server. When ctx is canceled it stops accepting
// requests, waits for in-flight ones up to the shutdown timeout and closes
// every open session.
func (h *HTTP) Serve(ctx context.Context, sessions SessionFactory) error {
	drain := newDrainer(h.shutdownTimeout, h.drainDelay)

	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	h.mu.Lock()
	h.listenAddr = listener.Addr().String()
	h.server = &http.Server{
		Handler:      h.track(drain, h.createHandler(sessions)),
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
	}
	srv := h.server
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		drainErr := drain.drain(context.Background())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		h.closeSessions()
		if err != nil {
			return err
		}
		if drainErr != nil {
			return fmt.Errorf("drain: %w", drainErr)
		}
		return ctx.Err()
	case err := <-errCh:
		h.closeSessions()
		return err
	}
}

// track rejects new requests once draining starts and counts in-flight ones.
func (h *HTTP) track(d *drainer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !d.enter() {
			w.Header().Set("Connection", "close")
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer d.leave()
		next.ServeHTTP(w, r)
	})
}

// createHandler creates the HTTP handler for MCP requests.
func (h *HTTP) createHandler(sessions SessionFactory) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"sessions": h.Sessions(),
		})
	})

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.handlePost(w, r, sessions)
		case http.MethodDelete:
			h.handleDelete(w, r)
		default:
			w.Header().Set("Allow", "POST, DELETE")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	if h.corsConfig != nil {
		return CORSHandler(*h.corsConfig, mux)
	}
	return mux
}

func (h *HTTP) handlePost(w http.ResponseWriter, r *http.Request, sessions SessionFactory) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				protocol.NewErrorResponse(nil, protocol.NewInvalidRequest("request body too large")))
			return
		}
		writeJSON(w, http.StatusBadRequest,
			protocol.NewErrorResponse(nil, protocol.NewParseError("failed to read body")))
		return
	}

	req, parseErr := decode(body)
	if parseErr != nil {
		// JSON-RPC errors travel with 200.
		writeJSON(w, http.StatusOK, parseErr)
		return
	}

	id := r.Header.Get(SessionHeader)
	session, created, perr := h.session(id, req, sessions)
	if perr != nil {
		status := http.StatusBadRequest
		if perr.Code == protocol.CodeNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, protocol.NewErrorResponse(req.ID, perr))
		return
	}
	if created {
		id = h.register(session)
	}

	ctx := r.Context()
	if rid := r.Header.Get(RequestIDHeader); rid != "" {
		ctx = protocol.WithMeta(ctx, protocol.MetaRequestID, rid)
	}
	resp := handle(ctx, "http", session, id, req)

	if created {
		if resp != nil && resp.Error != nil {
			h.remove(id)
		} else {
			w.Header().Set(SessionHeader, id)
		}
	}

	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// session resolves the handler a POST belongs to. A missing header is only
// valid on initialize, which gets a fresh session.
func (h *HTTP) session(id string, req *protocol.Request, sessions SessionFactory) (Handler, bool, *protocol.Error) {
	if id == "" {
		if req.Method != protocol.MethodInitialize {
			return nil, false, protocol.NewInvalidRequest("missing " + SessionHeader + " header")
		}
		return sessions(), true, nil
	}

	h.sessionsMu.RLock()
	session, ok := h.sessions[id]
	h.sessionsMu.RUnlock()
	if !ok {
		return nil, false, protocol.NewNotFound("unknown session")
	}
	return session, false, nil
}

func (h *HTTP) register(session Handler) string {
	id := sessionID(session)
	if id == "" {
		id = uuid.NewString()
	}

	h.sessionsMu.Lock()
	h.sessions[id] = session
	h.sessionsMu.Unlock()
	return id
}

func (h *HTTP) remove(id string) bool {
	h.sessionsMu.Lock()
	session, ok := h.sessions[id]
	delete(h.sessions, id)
	h.sessionsMu.Unlock()

	if ok {
		closeSession(session)
	}
	return ok
}

func (h *HTTP) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		http.Error(w, "missing "+SessionHeader+" header", http.StatusBadRequest)
		return
	}
	if !h.remove(id) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) closeSessions() {
	h.sessionsMu.Lock()
	open := h.sessions
	h.sessions = make(map[string]Handler)
	h.sessionsMu.Unlock()

	for _, session := range open {
		closeSession(session)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
