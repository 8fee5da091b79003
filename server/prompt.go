package server

import (
	"context"
	"fmt"
	"reflect"

	"github.com/fast-ish/mcp-server-template/protocol"
	"github.com/fast-ish/mcp-server-template/schema"
)

// PromptResult is the rendered output of a prompt.
type PromptResult struct {
	Description string
	Messages    []protocol.PromptMessage
}

// UserMessage returns a user-role text message.
func UserMessage(text string) protocol.PromptMessage {
	return protocol.PromptMessage{Role: protocol.RoleUser, Content: protocol.TextContent(text)}
}

// PromptArgument describes an argument for a prompt.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// PromptInfo describes a registered prompt.
type PromptInfo struct {
	Name        string
	Description string
	Arguments   []PromptArgument
}

// PromptHandler is a prompt handler bound to its argument shape. Build one
// with TypedPrompt or RawPrompt.
type PromptHandler struct {
	shape *schema.Schema
	call  func(ctx context.Context, args map[string]any) (*PromptResult, error)
	err   error
}

// TypedPrompt binds fn to the shape generated from In.
func TypedPrompt[In any](fn func(ctx context.Context, in In) (*PromptResult, error)) PromptHandler {
	shape, err := schema.GenerateFromType(reflect.TypeFor[In]())
	if err != nil {
		return PromptHandler{err: err}
	}
	return PromptHandler{
		shape: shape,
		call: func(ctx context.Context, args map[string]any) (*PromptResult, error) {
			in, err := schema.Decode[In](shape, args)
			if err != nil {
				return nil, err
			}
			return fn(ctx, in)
		},
	}
}

// RawPrompt binds fn to an explicit shape. A nil shape accepts any arguments.
func RawPrompt(shape *schema.Schema, fn func(ctx context.Context, args map[string]any) (*PromptResult, error)) PromptHandler {
	return PromptHandler{
		shape: shape,
		call: func(ctx context.Context, args map[string]any) (*PromptResult, error) {
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

// Prompt is a registered prompt: its descriptor and bound handler.
type Prompt struct {
	info    PromptInfo
	handler PromptHandler
}

// Info returns the prompt descriptor.
func (p *Prompt) Info() PromptInfo {
	return p.info
}

// Get validates args and renders the prompt.
func (p *Prompt) Get(ctx context.Context, args map[string]any) (*PromptResult, error) {
	result, err := p.handler.call(ctx, args)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &PromptResult{}
	}
	if result.Description == "" {
		result.Description = p.info.Description
	}
	return result, nil
}

// argumentsFromShape lists the shape's properties in declaration order.
func argumentsFromShape(s *schema.Schema) []PromptArgument {
	if s == nil {
		return nil
	}
	args := make([]PromptArgument, 0, len(s.Order))
	for _, name := range s.Order {
		prop := s.Properties[name]
		args = append(args, PromptArgument{
			Name:        name,
			Description: prop.Description,
			Required:    s.IsRequired(name),
		})
	}
	return args
}

// PromptBuilder provides a fluent API for building prompts.
type PromptBuilder struct {
	prompt *Prompt
	server *Server
}

// Description sets the prompt description.
func (b *PromptBuilder) Description(desc string) *PromptBuilder {
	b.prompt.info.Description = desc
	return b
}

// Handler binds the handler and registers the prompt. Arguments are derived
// from the handler's shape.
func (b *PromptBuilder) Handler(h PromptHandler) error {
	if h.err != nil {
		return fmt.Errorf("prompt %q: %w", b.prompt.info.Name, h.err)
	}
	if h.call == nil {
		return fmt.Errorf("prompt %q: handler is nil", b.prompt.info.Name)
	}
	if h.shape != nil {
		if err := h.shape.Compile(); err != nil {
			return fmt.Errorf("prompt %q: %w", b.prompt.info.Name, err)
		}
	}

	b.prompt.handler = h
	b.prompt.info.Arguments = argumentsFromShape(h.shape)
	return b.server.prompts.Register(b.prompt.info.Name, b.prompt)
}
