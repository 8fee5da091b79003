// Package testutil drives MCP servers in tests without a transport.
//
//	func TestMyServer(t *testing.T) {
//	    srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
//	    _ = srv.Tool("greet").Handler(mcp.TypedTool(greet))
//
//	    tc := testutil.NewTestClient(t, srv)
//
//	    got, err := tc.CallTool("greet", map[string]any{"name": "World"})
//	    if err != nil || got != "Hello, World" {
//	        t.Fatalf("greet = %q, %v", got, err)
//	    }
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/fast-ish/mcp-server-template/middleware"
	"github.com/fast-ish/mcp-server-template/protocol"
	"github.com/fast-ish/mcp-server-template/server"
	"github.com/fast-ish/mcp-server-template/transport"
)

// ToolError is returned by CallTool when the tool reported a failure in its
// output (isError) rather than as a protocol error.
type ToolError struct {
	Text string
}

func (e *ToolError) Error() string {
	return "tool error: " + e.Text
}

// TestClient sends requests straight to a session.
type TestClient struct {
	t       testing.TB
	session *server.Session
	handler transport.Handler

	mu    sync.Mutex
	reqID int64
}

// NewTestClient opens an initialized session on srv. Middleware, if given,
// wraps the session the same way a transport would.
func NewTestClient(t testing.TB, srv *server.Server, stack ...middleware.Middleware) *TestClient {
	t.Helper()

	session := server.NewSession(srv)
	handle := middleware.Chain(stack...)(session.HandleRequest)
	tc := &TestClient{
		t:       t,
		session: session,
		handler: transport.HandlerFunc(handle),
	}
	t.Cleanup(tc.Close)

	if _, err := tc.Initialize(); err != nil {
		t.Fatalf("failed to initialize session: %v", err)
	}
	if err := tc.Notify(protocol.MethodInitialized); err != nil {
		t.Fatalf("failed to send initialized: %v", err)
	}
	return tc
}

// NewTestClientWithHandler creates an uninitialized client around handler.
func NewTestClientWithHandler(t testing.TB, handler transport.Handler) *TestClient {
	t.Helper()
	return &TestClient{t: t, handler: handler}
}

// Session returns the underlying session, or nil for a custom handler.
func (tc *TestClient) Session() *server.Session {
	return tc.session
}

// Close ends the session.
func (tc *TestClient) Close() {
	if tc.session != nil {
		_ = tc.session.Close()
	}
}

func (tc *TestClient) nextID() json.RawMessage {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reqID++
	return json.RawMessage(strconv.FormatInt(tc.reqID, 10))
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return data, nil
}

// SendRequest sends a request and returns the raw response.
func (tc *TestClient) SendRequest(method string, params any) (*protocol.Response, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return tc.handler.HandleRequest(context.Background(), &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      tc.nextID(),
		Method:  method,
		Params:  raw,
	})
}

// Notify sends a notification. Notifications never produce a response.
func (tc *TestClient) Notify(method string) error {
	resp, err := tc.handler.HandleRequest(context.Background(), &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  method,
	})
	if err != nil {
		return err
	}
	if resp != nil {
		return fmt.Errorf("notification %s produced a response", method)
	}
	return nil
}

// call sends a request and decodes its result into out. An error response
// is returned as *protocol.Error.
func (tc *TestClient) call(method string, params, out any) error {
	resp, err := tc.SendRequest(method, params)
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("%s: no response", method)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("%s: marshal result: %w", method, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// Initialize sends initialize as client "testutil".
func (tc *TestClient) Initialize() (*protocol.InitializeResult, error) {
	var result protocol.InitializeResult
	err := tc.call(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"clientInfo":      map[string]string{"name": "testutil", "version": "1.0.0"},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping sends a ping request.
func (tc *TestClient) Ping() error {
	return tc.call(protocol.MethodPing, nil, nil)
}

// ListTools lists all available tools.
func (tc *TestClient) ListTools() ([]protocol.ToolDescriptor, error) {
	var result protocol.ListToolsResult
	if err := tc.call(protocol.MethodToolsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallToolResult calls a tool and returns its full result.
func (tc *TestClient) CallToolResult(name string, args any) (*protocol.CallToolResult, error) {
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	var result protocol.CallToolResult
	if err := tc.call(protocol.MethodToolsCall, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallTool calls a tool and returns its text output. A tool that reports
// failure yields its text and a *ToolError.
func (tc *TestClient) CallTool(name string, args any) (string, error) {
	result, err := tc.CallToolResult(name, args)
	if err != nil {
		return "", err
	}
	text := joinText(result.Content)
	if result.IsError {
		return text, &ToolError{Text: text}
	}
	return text, nil
}

func joinText(content []protocol.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if c.Type == protocol.ContentTypeText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ListResources lists concrete resources.
func (tc *TestClient) ListResources() ([]protocol.ResourceDescriptor, error) {
	var result protocol.ListResourcesResult
	if err := tc.call(protocol.MethodResourcesList, nil, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// ListResourceTemplates lists registered URI templates.
func (tc *TestClient) ListResourceTemplates() ([]protocol.ResourceTemplateDescriptor, error) {
	var result protocol.ListResourceTemplatesResult
	if err := tc.call(protocol.MethodResourceTemplatesList, nil, &result); err != nil {
		return nil, err
	}
	return result.ResourceTemplates, nil
}

// ReadResource reads a resource by URI and returns its text.
func (tc *TestClient) ReadResource(uri string) (string, error) {
	var result protocol.ReadResourceResult
	if err := tc.call(protocol.MethodResourcesRead, map[string]string{"uri": uri}, &result); err != nil {
		return "", err
	}
	if len(result.Contents) == 0 {
		return "", fmt.Errorf("resource %s: no contents", uri)
	}
	return result.Contents[0].Text, nil
}

// ListPrompts lists all available prompts.
func (tc *TestClient) ListPrompts() ([]protocol.PromptDescriptor, error) {
	var result protocol.ListPromptsResult
	if err := tc.call(protocol.MethodPromptsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// GetPrompt renders a prompt with the given arguments.
func (tc *TestClient) GetPrompt(name string, args map[string]any) (*protocol.GetPromptResult, error) {
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	var result protocol.GetPromptResult
	if err := tc.call(protocol.MethodPromptsGet, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AssertToolExists fails the test if no tool is named name.
func (tc *TestClient) AssertToolExists(name string) {
	tc.t.Helper()

	tools, err := tc.ListTools()
	if err != nil {
		tc.t.Fatalf("ListTools failed: %v", err)
	}
	for _, tool := range tools {
		if tool.Name == name {
			return
		}
	}
	tc.t.Errorf("tool %q not found", name)
}

// AssertResourceExists fails the test if uri is neither a listed resource
// nor a registered template.
func (tc *TestClient) AssertResourceExists(uri string) {
	tc.t.Helper()

	resources, err := tc.ListResources()
	if err != nil {
		tc.t.Fatalf("ListResources failed: %v", err)
	}
	for _, res := range resources {
		if res.URI == uri {
			return
		}
	}

	templates, err := tc.ListResourceTemplates()
	if err != nil {
		tc.t.Fatalf("ListResourceTemplates failed: %v", err)
	}
	for _, tmpl := range templates {
		if tmpl.URITemplate == uri {
			return
		}
	}
	tc.t.Errorf("resource %q not found", uri)
}

// AssertPromptExists fails the test if no prompt is named name.
func (tc *TestClient) AssertPromptExists(name string) {
	tc.t.Helper()

	prompts, err := tc.ListPrompts()
	if err != nil {
		tc.t.Fatalf("ListPrompts failed: %v", err)
	}
	for _, prompt := range prompts {
		if prompt.Name == name {
			return
		}
	}
	tc.t.Errorf("prompt %q not found", name)
}
