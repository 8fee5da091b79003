package capabilities

import (
	"context"
	"encoding/json"
	"path"

	"github.com/fast-ish/mcp-server-template/protocol"
	"github.com/fast-ish/mcp-server-template/sandbox"
	"github.com/fast-ish/mcp-server-template/server"
)

// ServerInfoURI is the URI of the server information resource.
const ServerInfoURI = "server://info"

// FileURITemplate is the URI template of sandboxed file resources.
const FileURITemplate = "file://{path}"

// ServerInfo is the document served at server://info. Field order fixes the
// JSON key order.
type ServerInfo struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Capabilities CapabilityFlags `json:"capabilities"`
}

// CapabilityFlags reports which capability kinds are enabled.
type CapabilityFlags struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	Prompts   bool `json:"prompts"`
}

func registerResources(srv *server.Server, opts Options) error {
	info := srv.Info()
	doc, err := json.MarshalIndent(ServerInfo{
		Name:        info.Name,
		Version:     opts.Version,
		Description: info.Description,
		Capabilities: CapabilityFlags{
			Tools:     opts.EnableTools,
			Resources: true,
			Prompts:   opts.EnablePrompts,
		},
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := srv.Resource(ServerInfoURI).
		Name("Server Info").
		Description("Server information and capabilities").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, _ map[string]string) (*protocol.ResourceContents, error) {
			return &protocol.ResourceContents{URI: uri, MimeType: "application/json", Text: string(doc)}, nil
		}); err != nil {
		return err
	}

	if opts.EnableFilesystem {
		files := &Files{Root: opts.AllowedDir}
		if err := srv.Resource(FileURITemplate).
			Name("Files").
			Description("Files under the allowed directory").
			MimeType("text/plain").
			Lister(files.List).
			Handler(files.Read); err != nil {
			return err
		}
	}
	return nil
}

// Files serves file://<relative-path> resources from Root. Every read
// re-resolves the path through the sandbox.
type Files struct {
	Root string
}

// List enumerates every non-hidden file under Root.
func (f *Files) List(_ context.Context) ([]server.ResourceInfo, error) {
	var out []server.ResourceInfo
	err := sandbox.Walk(f.Root, func(rel string) error {
		out = append(out, server.ResourceInfo{
			URI:         "file://" + rel,
			Name:        path.Base(rel),
			Description: "File: " + rel,
			MimeType:    MimeType(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Read returns the text of the file named by the path parameter.
func (f *Files) Read(_ context.Context, uri string, params map[string]string) (*protocol.ResourceContents, error) {
	rel := params["path"]
	data, err := sandbox.ReadFile(f.Root, rel)
	if err != nil {
		return nil, err
	}
	return &protocol.ResourceContents{
		URI:      uri,
		MimeType: MimeType(rel),
		Text:     string(data),
	}, nil
}
