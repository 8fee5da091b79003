// Package client is an MCP client. It speaks to a server over any
// Transport and decodes results into the protocol package's types.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// Transport carries requests to a server. Send returns a nil response for
// notifications.
type Transport interface {
	Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
	Close() error
}

// Client is an MCP client bound to one transport.
type Client struct {
	transport Transport
	opts      clientOptions

	mu        sync.RWMutex
	initInfo  *protocol.InitializeResult
	requestID atomic.Int64
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout     time.Duration
	clientName  string
	clientVer   string
	protocolVer string
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithClientInfo sets the identity sent in initialize.
func WithClientInfo(name, version string) Option {
	return func(o *clientOptions) {
		o.clientName = name
		o.clientVer = version
	}
}

// WithProtocolVersion overrides the protocol version sent in initialize.
func WithProtocolVersion(version string) Option {
	return func(o *clientOptions) {
		o.protocolVer = version
	}
}

// New creates a client over transport.
func New(transport Transport, opts ...Option) *Client {
	options := clientOptions{
		timeout:     30 * time.Second,
		clientName:  "mcp-client",
		clientVer:   "1.0.0",
		protocolVer: protocol.MCPVersion,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Client{
		transport: transport,
		opts:      options,
	}
}

// Initialize performs the handshake and sends notifications/initialized.
func (c *Client) Initialize(ctx context.Context) (*protocol.InitializeResult, error) {
	params := map[string]any{
		"protocolVersion": c.opts.protocolVer,
		"clientInfo": map[string]any{
			"name":    c.opts.clientName,
			"version": c.opts.clientVer,
		},
		"capabilities": map[string]any{},
	}

	var result protocol.InitializeResult
	if err := c.Call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := c.Notify(ctx, protocol.MethodInitialized); err != nil {
		return nil, fmt.Errorf("initialized: %w", err)
	}

	c.mu.Lock()
	c.initInfo = &result
	c.mu.Unlock()
	return &result, nil
}

// ServerInfo returns the initialize result, or nil before Initialize.
func (c *Client) ServerInfo() *protocol.InitializeResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initInfo
}

// Ping sends a ping.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Call(ctx, protocol.MethodPing, nil, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ListTools lists the server's tools.
func (c *Client) ListTools(ctx context.Context) ([]protocol.ToolDescriptor, error) {
	var result protocol.ListToolsResult
	if err := c.Call(ctx, protocol.MethodToolsList, nil, &result); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool calls a tool. A tool-reported failure comes back as a result
// with IsError set, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (*protocol.CallToolResult, error) {
	params := map[string]any{"name": name}
	if arguments != nil {
		params["arguments"] = arguments
	}
	var result protocol.CallToolResult
	if err := c.Call(ctx, protocol.MethodToolsCall, params, &result); err != nil {
		return nil, fmt.Errorf("call tool %q: %w", name, err)
	}
	return &result, nil
}

// ListResources lists concrete resources.
func (c *Client) ListResources(ctx context.Context) ([]protocol.ResourceDescriptor, error) {
	var result protocol.ListResourcesResult
	if err := c.Call(ctx, protocol.MethodResourcesList, nil, &result); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return result.Resources, nil
}

// ListResourceTemplates lists templated resources.
func (c *Client) ListResourceTemplates(ctx context.Context) ([]protocol.ResourceTemplateDescriptor, error) {
	var result protocol.ListResourceTemplatesResult
	if err := c.Call(ctx, protocol.MethodResourceTemplatesList, nil, &result); err != nil {
		return nil, fmt.Errorf("list resource templates: %w", err)
	}
	return result.ResourceTemplates, nil
}

// ReadResource reads the first contents entry of uri.
func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ResourceContents, error) {
	var result protocol.ReadResourceResult
	if err := c.Call(ctx, protocol.MethodResourcesRead, map[string]any{"uri": uri}, &result); err != nil {
		return nil, fmt.Errorf("read resource %q: %w", uri, err)
	}
	if len(result.Contents) == 0 {
		return nil, fmt.Errorf("read resource %q: no content", uri)
	}
	return &result.Contents[0], nil
}

// ListPrompts lists the server's prompts.
func (c *Client) ListPrompts(ctx context.Context) ([]protocol.PromptDescriptor, error) {
	var result protocol.ListPromptsResult
	if err := c.Call(ctx, protocol.MethodPromptsList, nil, &result); err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return result.Prompts, nil
}

// GetPrompt renders a prompt.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]any) (*protocol.GetPromptResult, error) {
	params := map[string]any{"name": name}
	if arguments != nil {
		params["arguments"] = arguments
	}
	var result protocol.GetPromptResult
	if err := c.Call(ctx, protocol.MethodPromptsGet, params, &result); err != nil {
		return nil, fmt.Errorf("get prompt %q: %w", name, err)
	}
	return &result, nil
}

// Notify sends a notification.
func (c *Client) Notify(ctx context.Context, method string) error {
	_, err := c.transport.Send(ctx, &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  method,
	})
	return err
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Call sends one request and decodes its result into out, which may be nil.
// A JSON-RPC error is returned as *protocol.Error.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	var paramsRaw json.RawMessage
	if params != nil {
		var err error
		paramsRaw, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      json.RawMessage(strconv.FormatInt(c.requestID.Add(1), 10)),
		Method:  method,
		Params:  paramsRaw,
	}

	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("no response")
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	return decodeResult(resp.Result, out)
}

// decodeResult decodes a response result, which transports leave as
// json.RawMessage.
func decodeResult(result, out any) error {
	raw, ok := result.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// wireResponse is a response as read off the wire, with the result kept raw.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *protocol.Error `json:"error,omitempty"`
}

func parseResponse(data []byte) (*protocol.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	resp := &protocol.Response{JSONRPC: w.JSONRPC, ID: w.ID, Error: w.Error}
	if w.Result != nil {
		resp.Result = w.Result
	}
	return resp, nil
}

// pending routes responses from a read loop back to waiting callers by id.
type pending struct {
	mu      sync.Mutex
	waiters map[string]chan *protocol.Response
	err     error
}

func newPending() *pending {
	return &pending{waiters: make(map[string]chan *protocol.Response)}
}

func (p *pending) add(id json.RawMessage) (chan *protocol.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan *protocol.Response, 1)
	p.waiters[string(id)] = ch
	return ch, nil
}

func (p *pending) remove(id json.RawMessage) {
	p.mu.Lock()
	delete(p.waiters, string(id))
	p.mu.Unlock()
}

func (p *pending) deliver(resp *protocol.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.waiters[string(resp.ID)]; ok {
		ch <- resp
		delete(p.waiters, string(resp.ID))
	}
}

// fail rejects every current and future waiter with err.
func (p *pending) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
	for id, ch := range p.waiters {
		close(ch)
		delete(p.waiters, id)
	}
}

func (p *pending) failure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// wait blocks for the response to id.
func (p *pending) wait(ctx context.Context, id json.RawMessage, ch chan *protocol.Response) (*protocol.Response, error) {
	select {
	case <-ctx.Done():
		p.remove(id)
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, p.failure()
		}
		return resp, nil
	}
}
