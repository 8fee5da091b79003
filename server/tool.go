package server

import (
	"context"
	"fmt"
	"reflect"

	"github.com/fast-ish/mcp-server-template/protocol"
	"github.com/fast-ish/mcp-server-template/schema"
)

// ToolResult is the outcome of a tool call. IsError marks a failure that is
// reported to the caller as tool output rather than as a protocol error.
type ToolResult struct {
	Content []protocol.Content
	IsError bool
}

// TextResult returns a successful result with a single text item.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []protocol.Content{protocol.TextContent(text)}}
}

// ErrorResult returns a failed result with a single text item.
func ErrorResult(text string) *ToolResult {
	return &ToolResult{Content: []protocol.Content{protocol.TextContent(text)}, IsError: true}
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema *schema.Schema
}

// ToolHandler is a tool handler bound to its argument shape. Build one with
// TypedTool or RawTool.
type ToolHandler struct {
	shape *schema.Schema
	call  func(ctx context.Context, args map[string]any) (*ToolResult, error)
	err   error
}

// TypedTool binds fn to the shape generated from In. Arguments are
// validated, defaulted and decoded into In before fn runs.
func TypedTool[In any](fn func(ctx context.Context, in In) (*ToolResult, error)) ToolHandler {
	shape, err := schema.GenerateFromType(reflect.TypeFor[In]())
	if err != nil {
		return ToolHandler{err: err}
	}
	return ToolHandler{
		shape: shape,
		call: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
			in, err := schema.Decode[In](shape, args)
			if err != nil {
				return nil, err
			}
			return fn(ctx, in)
		},
	}
}

// RawTool binds fn to an explicit shape. A nil shape accepts any arguments.
func RawTool(shape *schema.Schema, fn func(ctx context.Context, args map[string]any) (*ToolResult, error)) ToolHandler {
	return ToolHandler{
		shape: shape,
		call: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
			if shape != nil {
				validated, err := shape.Validate(args)
				if err != nil {
					return nil, err
				}
				args = validated
			}
			return fn(ctx, args)
		},
	}
}

// Tool is a registered tool: its descriptor and bound handler.
type Tool struct {
	info    ToolInfo
	handler ToolHandler
}

// Info returns the tool descriptor.
func (t *Tool) Info() ToolInfo {
	return t.info
}

// Call validates args and runs the handler.
func (t *Tool) Call(ctx context.Context, args map[string]any) (*ToolResult, error) {
	result, err := t.handler.call(ctx, args)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &ToolResult{}
	}
	return result, nil
}

// ToolBuilder provides a fluent API for building tools.
type ToolBuilder struct {
	tool   *Tool
	server *Server
}

// Description sets the tool description.
func (b *ToolBuilder) Description(desc string) *ToolBuilder {
	b.tool.info.Description = desc
	return b
}

// Handler binds the handler and registers the tool.
func (b *ToolBuilder) Handler(h ToolHandler) error {
	if h.err != nil {
		return fmt.Errorf("tool %q: %w", b.tool.info.Name, h.err)
	}
	if h.call == nil {
		return fmt.Errorf("tool %q: handler is nil", b.tool.info.Name)
	}
	if h.shape != nil {
		if err := h.shape.Compile(); err != nil {
			return fmt.Errorf("tool %q: %w", b.tool.info.Name, err)
		}
	}

	b.tool.handler = h
	b.tool.info.InputSchema = h.shape
	return b.server.tools.Register(b.tool.info.Name, b.tool)
}
