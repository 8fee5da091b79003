package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// WebSocketTransport exchanges one JSON-RPC message per text frame.
type WebSocketTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending *pending
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// DialWebSocket connects to url, e.g. "ws://localhost:8081/". header may
// be nil.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocketTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	t := &WebSocketTransport{
		conn:    conn,
		pending: newPending(),
		done:    make(chan struct{}),
	}
	go t.readResponses()
	return t, nil
}

// Send writes req and, unless it is a notification, waits for its response.
func (t *WebSocketTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var ch chan *protocol.Response
	if !req.IsNotification() {
		if ch, err = t.pending.add(req.ID); err != nil {
			return nil, err
		}
	}

	t.writeMu.Lock()
	err = t.conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()
	if err != nil {
		if ch != nil {
			t.pending.remove(req.ID)
		}
		return nil, fmt.Errorf("write request: %w", err)
	}

	if ch == nil {
		return nil, nil
	}
	return t.pending.wait(ctx, req.ID, ch)
}

// Close sends a close frame and tears down the connection.
func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		t.closeErr = t.conn.Close()
		<-t.done
	})
	return t.closeErr
}

func (t *WebSocketTransport) readResponses() {
	defer close(t.done)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.pending.fail(ErrClosed)
			return
		}
		resp, err := parseResponse(data)
		if err != nil {
			continue
		}
		t.pending.deliver(resp)
	}
}
