package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/fast-ish/mcp-server-template/protocol"
	"github.com/fast-ish/mcp-server-template/transport"
)

// HTTPTransport posts each message to a streamable HTTP endpoint and keeps
// the session id the server issues on initialize.
type HTTPTransport struct {
	endpoint string
	client   *http.Client

	mu        sync.Mutex
	sessionID string
	closed    bool
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// NewHTTPTransport creates a transport for endpoint, e.g.
// "http://localhost:8080/mcp".
func NewHTTPTransport(endpoint string, opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: endpoint,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID returns the session id issued by the server, if any.
func (t *HTTPTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Send posts req. Notifications are accepted with 202 and yield no response.
func (t *HTTPTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	t.mu.Lock()
	closed, sessionID := t.closed, t.sessionID
	t.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		httpReq.Header.Set(transport.SessionHeader, sessionID)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode == http.StatusAccepted && req.IsNotification() {
		return nil, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("http status %d", httpResp.StatusCode)
	}

	resp, err := parseResponse(data)
	if err != nil {
		return nil, fmt.Errorf("http status %d: %w", httpResp.StatusCode, err)
	}
	if id := httpResp.Header.Get(transport.SessionHeader); id != "" {
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
	}
	return resp, nil
}

// Close ends the server-side session with a DELETE when one was issued.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	closed, sessionID := t.closed, t.sessionID
	t.closed = true
	t.mu.Unlock()
	if closed || sessionID == "" {
		return nil
	}

	req, err := http.NewRequest(http.MethodDelete, t.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set(transport.SessionHeader, sessionID)
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete session: http status %d", resp.StatusCode)
	}
	return nil
}
