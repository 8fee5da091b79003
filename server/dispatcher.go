package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// Dispatcher routes capability requests to the server's registries.
// Lifecycle methods are handled by Session.
type Dispatcher struct {
	srv *Server
}

// NewDispatcher returns a dispatcher over srv.
func NewDispatcher(srv *Server) *Dispatcher {
	return &Dispatcher{srv: srv}
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type readParams struct {
	URI string `json:"uri"`
}

// HandleRequest dispatches a single request. Failures are returned as error
// responses; the Go error is reserved for transport faults and is always nil.
func (d *Dispatcher) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var (
		result any
		err    error
	)

	switch req.Method {
	case protocol.MethodPing:
		result = struct{}{}
	case protocol.MethodToolsList:
		result = d.listTools()
	case protocol.MethodToolsCall:
		result, err = d.callTool(ctx, req.Params)
	case protocol.MethodResourcesList:
		result = d.listResources(ctx)
	case protocol.MethodResourceTemplatesList:
		result = d.listResourceTemplates()
	case protocol.MethodResourcesRead:
		result, err = d.readResource(ctx, req.Params)
	case protocol.MethodPromptsList:
		result = d.listPrompts()
	case protocol.MethodPromptsGet:
		result, err = d.getPrompt(ctx, req.Params)
	default:
		err = protocol.NewMethodNotFound(fmt.Sprintf("method not found: %s", req.Method))
	}

	if err != nil {
		return protocol.NewErrorResponse(req.ID, ToProtocolError(err)), nil
	}
	return protocol.NewResponse(req.ID, result), nil
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return protocol.NewInvalidParams("missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return protocol.NewInvalidParams(fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}

func (d *Dispatcher) listTools() *protocol.ListToolsResult {
	infos := d.srv.Tools()
	out := &protocol.ListToolsResult{Tools: make([]protocol.ToolDescriptor, 0, len(infos))}
	for _, t := range infos {
		var inputSchema any = map[string]any{"type": "object"}
		if t.InputSchema != nil {
			inputSchema = t.InputSchema
		}
		out.Tools = append(out.Tools, protocol.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: inputSchema,
		})
	}
	return out
}

func (d *Dispatcher) callTool(ctx context.Context, raw json.RawMessage) (*protocol.CallToolResult, error) {
	var p callParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, protocol.NewInvalidParams("missing tool name")
	}

	tool, err := d.srv.GetTool(p.Name)
	if err != nil {
		return nil, err
	}
	result, err := tool.Call(ctx, p.Arguments)
	if err != nil {
		return nil, err
	}

	content := result.Content
	if content == nil {
		content = []protocol.Content{}
	}
	return &protocol.CallToolResult{Content: content, IsError: result.IsError}, nil
}

func toResourceDescriptor(r ResourceInfo) protocol.ResourceDescriptor {
	return protocol.ResourceDescriptor{
		URI:         r.URI,
		Name:        r.Name,
		Description: r.Description,
		MimeType:    r.MimeType,
	}
}

func (d *Dispatcher) listResources(ctx context.Context) *protocol.ListResourcesResult {
	infos := d.srv.ListResources(ctx)
	out := &protocol.ListResourcesResult{Resources: make([]protocol.ResourceDescriptor, 0, len(infos))}
	for _, r := range infos {
		out.Resources = append(out.Resources, toResourceDescriptor(r))
	}
	return out
}

func (d *Dispatcher) listResourceTemplates() *protocol.ListResourceTemplatesResult {
	out := &protocol.ListResourceTemplatesResult{ResourceTemplates: []protocol.ResourceTemplateDescriptor{}}
	for _, r := range d.srv.resources.List() {
		if !r.IsTemplate() {
			continue
		}
		out.ResourceTemplates = append(out.ResourceTemplates, protocol.ResourceTemplateDescriptor{
			URITemplate: r.info.URI,
			Name:        r.info.Name,
			Description: r.info.Description,
			MimeType:    r.info.MimeType,
		})
	}
	return out
}

func (d *Dispatcher) readResource(ctx context.Context, raw json.RawMessage) (*protocol.ReadResourceResult, error) {
	var p readParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.URI == "" {
		return nil, protocol.NewInvalidParams("missing resource uri")
	}

	res, err := d.srv.FindResource(p.URI)
	if err != nil {
		return nil, err
	}
	contents, err := res.Read(ctx, p.URI)
	if err != nil {
		return nil, err
	}
	return &protocol.ReadResourceResult{Contents: []protocol.ResourceContents{*contents}}, nil
}

func (d *Dispatcher) listPrompts() *protocol.ListPromptsResult {
	infos := d.srv.Prompts()
	out := &protocol.ListPromptsResult{Prompts: make([]protocol.PromptDescriptor, 0, len(infos))}
	for _, p := range infos {
		desc := protocol.PromptDescriptor{Name: p.Name, Description: p.Description}
		for _, a := range p.Arguments {
			desc.Arguments = append(desc.Arguments, protocol.PromptArgumentDescriptor{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		out.Prompts = append(out.Prompts, desc)
	}
	return out
}

func (d *Dispatcher) getPrompt(ctx context.Context, raw json.RawMessage) (*protocol.GetPromptResult, error) {
	var p callParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, protocol.NewInvalidParams("missing prompt name")
	}

	prompt, err := d.srv.GetPrompt(p.Name)
	if err != nil {
		return nil, err
	}
	result, err := prompt.Get(ctx, p.Arguments)
	if err != nil {
		return nil, err
	}

	messages := result.Messages
	if messages == nil {
		messages = []protocol.PromptMessage{}
	}
	return &protocol.GetPromptResult{Description: result.Description, Messages: messages}, nil
}
