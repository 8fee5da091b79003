package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket serves MCP over WebSocket. Each connection is one session and
// each text frame one JSON-RPC message.
type WebSocket struct {
	addr     string
	path     string
	upgrader websocket.Upgrader

	idleTimeout  time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration
	maxMessage   int64

	mu         sync.Mutex
	listenAddr string
	conns      map[*wsConn]struct{}
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketReadTimeout closes a connection that sends nothing, not
// even a pong, for d.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) { ws.idleTimeout = d }
}

// WithWebSocketWriteTimeout bounds each frame write.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) { ws.writeTimeout = d }
}

// WithWebSocketPingInterval sets how often idle connections are pinged.
// Zero disables pings.
func WithWebSocketPingInterval(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) { ws.pingInterval = d }
}

// WithWebSocketOrigins limits upgrades to the given origins, matched the
// same way as CORSConfig.AllowOrigins. By default any origin may connect.
func WithWebSocketOrigins(origins ...string) WebSocketOption {
	return func(ws *WebSocket) {
		policy := newCORSPolicy(CORSConfig{AllowOrigins: origins})
		ws.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || policy.allow(origin) != ""
		}
	}
}

// WithWebSocketCheckOrigin replaces the upgrade origin check.
func WithWebSocketCheckOrigin(fn func(r *http.Request) bool) WebSocketOption {
	return func(ws *WebSocket) { ws.upgrader.CheckOrigin = fn }
}

// WithWebSocketPath sets the upgrade path. Default "/".
func WithWebSocketPath(path string) WebSocketOption {
	return func(ws *WebSocket) { ws.path = path }
}

// WithWebSocketMaxMessage bounds a single incoming frame. Larger frames
// close the connection with 1009.
func WithWebSocketMaxMessage(n int64) WebSocketOption {
	return func(ws *WebSocket) { ws.maxMessage = n }
}

// NewWebSocket returns a WebSocket transport listening on addr.
func NewWebSocket(addr string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		addr: addr,
		path: "/",
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		idleTimeout:  5 * time.Minute,
		writeTimeout: 10 * time.Second,
		pingInterval: 30 * time.Second,
		maxMessage:   DefaultMaxBodyBytes,
		conns:        make(map[*wsConn]struct{}),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// Addr returns the configured address.
func (ws *WebSocket) Addr() string { return ws.addr }

// ListenAddr returns the bound address once Serve is listening.
func (ws *WebSocket) ListenAddr() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.listenAddr
}

// Connections returns the number of open connections.
func (ws *WebSocket) Connections() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.conns)
}

// Serve accepts connections until ctx is canceled, then tells every client
// the server is going away and closes their sessions.
func (ws *WebSocket) Serve(ctx context.Context, sessions SessionFactory) error {
	listener, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	ws.mu.Lock()
	ws.listenAddr = listener.Addr().String()
	ws.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(ws.path, func(w http.ResponseWriter, r *http.Request) {
		ws.accept(ctx, w, r, sessions)
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		ws.closeAll(websocket.CloseGoingAway, "server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		ws.closeAll(websocket.CloseInternalServerErr, "")
		return err
	}
}

func (ws *WebSocket) accept(ctx context.Context, w http.ResponseWriter, r *http.Request, sessions SessionFactory) {
	raw, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	c := &wsConn{conn: raw, writeTimeout: ws.writeTimeout, done: make(chan struct{})}
	if ws.maxMessage > 0 {
		raw.SetReadLimit(ws.maxMessage)
	}
	ws.track(c, true)

	session := sessions()
	id := sessionID(session)
	defer func() {
		c.stop()
		ws.track(c, false)
		closeSession(session)
		_ = raw.Close()
	}()

	touch := ws.keepAlive(c)

	for ctx.Err() == nil {
		kind, data, err := raw.ReadMessage()
		if err != nil {
			return
		}
		touch()
		if kind != websocket.TextMessage {
			c.shutdown(websocket.CloseUnsupportedData, "text frames only")
			return
		}

		req, parseErr := decode(data)
		if parseErr != nil {
			if c.send(parseErr) != nil {
				return
			}
			continue
		}
		if resp := handle(ctx, "websocket", session, id, req); resp != nil {
			if c.send(resp) != nil {
				return
			}
		}
	}
}

// keepAlive arms the idle deadline, extends it on every pong and pings
// the client until the connection stops. The returned func extends the
// deadline after any other client message.
func (ws *WebSocket) keepAlive(c *wsConn) func() {
	extend := func() {
		if ws.idleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(ws.idleTimeout))
		}
	}
	extend()
	c.conn.SetPongHandler(func(string) error { extend(); return nil })

	if ws.pingInterval <= 0 {
		return extend
	}
	go func() {
		ticker := time.NewTicker(ws.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				if c.ping() != nil {
					return
				}
			}
		}
	}()
	return extend
}

func (ws *WebSocket) track(c *wsConn, open bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if open {
		ws.conns[c] = struct{}{}
	} else {
		delete(ws.conns, c)
	}
}

func (ws *WebSocket) closeAll(code int, reason string) {
	ws.mu.Lock()
	conns := make([]*wsConn, 0, len(ws.conns))
	for c := range ws.conns {
		conns = append(conns, c)
	}
	ws.mu.Unlock()

	for _, c := range conns {
		c.shutdown(code, reason)
	}
}

// wsConn serializes writes to one gorilla connection, which allows only a
// single concurrent writer.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu       sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
}

func (c *wsConn) deadline() time.Time {
	if c.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.writeTimeout)
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(c.deadline())
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, c.deadline())
}

// shutdown sends a close frame and drops the connection; the read loop
// then fails and cleans up.
func (c *wsConn) shutdown(code int, reason string) {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.mu.Unlock()
	_ = c.conn.Close()
}

func (c *wsConn) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}
