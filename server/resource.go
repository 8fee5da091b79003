package server

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// ResourceHandler reads a resource. params holds the values captured by the
// URI template placeholders.
type ResourceHandler func(ctx context.Context, uri string, params map[string]string) (*protocol.ResourceContents, error)

// ResourceLister expands a templated resource into concrete descriptors for
// resources/list.
type ResourceLister func(ctx context.Context) ([]ResourceInfo, error)

// ResourceInfo describes a resource or resource template.
type ResourceInfo struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// Resource is a registered resource: descriptor, handler and compiled
// URI template.
type Resource struct {
	info    ResourceInfo
	handler ResourceHandler
	lister  ResourceLister

	uriRegex   *regexp.Regexp
	paramNames []string
}

// Info returns the resource descriptor. URI is the template as registered.
func (r *Resource) Info() ResourceInfo {
	return r.info
}

// IsTemplate reports whether the URI carries placeholders.
func (r *Resource) IsTemplate() bool {
	return len(r.paramNames) > 0
}

// Match reports whether uri matches the template and returns the captured
// parameters.
func (r *Resource) Match(uri string) (map[string]string, bool) {
	m := r.uriRegex.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(r.paramNames))
	for i, name := range r.paramNames {
		params[name] = m[i+1]
	}
	return params, true
}

// Read runs the handler for uri.
func (r *Resource) Read(ctx context.Context, uri string) (*protocol.ResourceContents, error) {
	params, ok := r.Match(uri)
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", uri, ErrNotFound)
	}

	contents, err := r.handler(ctx, uri, params)
	if err != nil {
		return nil, err
	}
	if contents == nil {
		contents = &protocol.ResourceContents{}
	}
	if contents.URI == "" {
		contents.URI = uri
	}
	if contents.MimeType == "" {
		contents.MimeType = r.info.MimeType
	}
	return contents, nil
}

// List returns the concrete descriptors for this resource: the lister's
// expansion for templates, or the descriptor itself for static URIs.
// Templates without a lister list nothing.
func (r *Resource) List(ctx context.Context) ([]ResourceInfo, error) {
	if r.lister != nil {
		return r.lister(ctx)
	}
	if r.IsTemplate() {
		return nil, nil
	}
	return []ResourceInfo{r.info}, nil
}

var placeholderRegex = regexp.MustCompile(`\{([^}]+)\}`)

// compileTemplate converts a URI template to a regex for matching. The last
// placeholder matches the rest of the URI, slashes included; earlier ones
// match a single segment.
func (r *Resource) compileTemplate() error {
	matches := placeholderRegex.FindAllStringSubmatchIndex(r.info.URI, -1)

	var sb strings.Builder
	sb.WriteString("^")
	last := 0
	r.paramNames = make([]string, 0, len(matches))
	for i, m := range matches {
		sb.WriteString(regexp.QuoteMeta(r.info.URI[last:m[0]]))
		name := r.info.URI[m[2]:m[3]]
		for _, seen := range r.paramNames {
			if seen == name {
				return fmt.Errorf("resource %q: placeholder %q repeated", r.info.URI, name)
			}
		}
		r.paramNames = append(r.paramNames, name)
		if i == len(matches)-1 {
			sb.WriteString("(.+)")
		} else {
			sb.WriteString("([^/]+)")
		}
		last = m[1]
	}
	sb.WriteString(regexp.QuoteMeta(r.info.URI[last:]))
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return fmt.Errorf("resource %q: %w", r.info.URI, err)
	}
	r.uriRegex = re
	return nil
}

// ResourceBuilder provides a fluent API for building resources.
type ResourceBuilder struct {
	resource *Resource
	server   *Server
}

// Name sets a human-readable name for the resource.
func (b *ResourceBuilder) Name(name string) *ResourceBuilder {
	b.resource.info.Name = name
	return b
}

// Description sets the resource description.
func (b *ResourceBuilder) Description(desc string) *ResourceBuilder {
	b.resource.info.Description = desc
	return b
}

// MimeType sets the default MIME type of the resource content.
func (b *ResourceBuilder) MimeType(mimeType string) *ResourceBuilder {
	b.resource.info.MimeType = mimeType
	return b
}

// Lister sets the function that expands a template for resources/list.
func (b *ResourceBuilder) Lister(fn ResourceLister) *ResourceBuilder {
	b.resource.lister = fn
	return b
}

// Handler sets the handler and registers the resource.
func (b *ResourceBuilder) Handler(fn ResourceHandler) error {
	if fn == nil {
		return fmt.Errorf("resource %q: handler is nil", b.resource.info.URI)
	}
	b.resource.handler = fn

	if err := b.resource.compileTemplate(); err != nil {
		return err
	}
	if b.resource.info.Name == "" {
		b.resource.info.Name = b.resource.info.URI
	}
	return b.server.resources.Register(b.resource.info.URI, b.resource)
}
