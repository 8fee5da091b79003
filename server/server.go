package server

import (
	"context"
	"fmt"
)

// Info contains server metadata exposed to clients.
type Info struct {
	Name         string
	Version      string
	Description  string
	Capabilities Capabilities
}

// Capabilities declares what features the server advertises. A capability
// is also advertised whenever its registry is non-empty.
type Capabilities struct {
	Tools     bool
	Resources bool
	Prompts   bool
}

// Option configures a Server.
type Option func(*Server)

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(text string) Option {
	return func(s *Server) {
		s.instructions = text
	}
}

// Server holds the three capability registries. Capabilities are
// registered before the server is handed to a Session; NewSession seals
// the registries.
type Server struct {
	info         Info
	instructions string

	tools     *Registry[*Tool]
	resources *Registry[*Resource]
	prompts   *Registry[*Prompt]
}

// New creates a new MCP server with the given info and options.
func New(info Info, opts ...Option) *Server {
	s := &Server{
		info:      info,
		tools:     NewRegistry[*Tool]("tool"),
		resources: NewRegistry[*Resource]("resource"),
		prompts:   NewRegistry[*Prompt]("prompt"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Info returns the server info.
func (s *Server) Info() Info {
	return s.info
}

// Instructions returns the instructions sent during initialization.
func (s *Server) Instructions() string {
	return s.instructions
}

// Capabilities returns the advertised capabilities.
func (s *Server) Capabilities() Capabilities {
	return Capabilities{
		Tools:     s.info.Capabilities.Tools || s.tools.Len() > 0,
		Resources: s.info.Capabilities.Resources || s.resources.Len() > 0,
		Prompts:   s.info.Capabilities.Prompts || s.prompts.Len() > 0,
	}
}

// Seal makes all three registries read-only.
func (s *Server) Seal() {
	s.tools.Seal()
	s.resources.Seal()
	s.prompts.Seal()
}

// Sealed reports whether the server has been sealed.
func (s *Server) Sealed() bool {
	return s.tools.Sealed()
}

// Tool starts building a new tool with the given name.
func (s *Server) Tool(name string) *ToolBuilder {
	return &ToolBuilder{
		tool:   &Tool{info: ToolInfo{Name: name}},
		server: s,
	}
}

// Tools returns info about all registered tools in registration order.
func (s *Server) Tools() []ToolInfo {
	tools := s.tools.List()
	result := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		result = append(result, t.info)
	}
	return result
}

// GetTool retrieves a tool by name.
func (s *Server) GetTool(name string) (*Tool, error) {
	return s.tools.Get(name)
}

// Resource starts building a new resource with the given URI or URI template.
func (s *Server) Resource(uri string) *ResourceBuilder {
	return &ResourceBuilder{
		resource: &Resource{info: ResourceInfo{URI: uri}},
		server:   s,
	}
}

// Resources returns info about all registered resources and templates in
// registration order.
func (s *Server) Resources() []ResourceInfo {
	resources := s.resources.List()
	result := make([]ResourceInfo, 0, len(resources))
	for _, r := range resources {
		result = append(result, r.info)
	}
	return result
}

// ListResources returns the concrete resources, expanding templates through
// their listers. A lister that fails contributes nothing.
func (s *Server) ListResources(ctx context.Context) []ResourceInfo {
	var result []ResourceInfo
	for _, r := range s.resources.List() {
		infos, err := r.List(ctx)
		if err != nil {
			continue
		}
		result = append(result, infos...)
	}
	return result
}

// FindResource returns the resource serving uri: an exact registration
// first, then the first template in registration order that matches.
func (s *Server) FindResource(uri string) (*Resource, error) {
	if r, err := s.resources.Get(uri); err == nil {
		if _, ok := r.Match(uri); ok {
			return r, nil
		}
	}
	for _, r := range s.resources.List() {
		if _, ok := r.Match(uri); ok {
			return r, nil
		}
	}
	return nil, fmt.Errorf("resource %q: %w", uri, ErrNotFound)
}

// Prompt starts building a new prompt with the given name.
func (s *Server) Prompt(name string) *PromptBuilder {
	return &PromptBuilder{
		prompt: &Prompt{info: PromptInfo{Name: name}},
		server: s,
	}
}

// Prompts returns info about all registered prompts in registration order.
func (s *Server) Prompts() []PromptInfo {
	prompts := s.prompts.List()
	result := make([]PromptInfo, 0, len(prompts))
	for _, p := range prompts {
		result = append(result, p.info)
	}
	return result
}

// GetPrompt retrieves a prompt by name.
func (s *Server) GetPrompt(name string) (*Prompt, error) {
	return s.prompts.Get(name)
}
