// Package server provides the capability registries, dispatcher and session
// of an MCP server.
//
// # Server
//
// A Server holds three ordered registries: tools, resources and prompts.
// Capabilities are registered up front; NewSession seals the registries, so
// a duplicate name or a late registration is reported as an error at
// startup rather than discovered while serving.
//
//	srv := server.New(server.Info{Name: "my-server", Version: "1.0.0"})
//
// # Tools
//
// Handlers are bound to a typed argument struct. The argument shape is
// generated from its tags and checked before the handler runs:
//
//	type EchoArgs struct {
//	    Message string `json:"message" jsonschema:"required,description=Message to echo"`
//	}
//
//	err := srv.Tool("echo").
//	    Description("Echo a message").
//	    Handler(server.TypedTool(func(ctx context.Context, in EchoArgs) (*server.ToolResult, error) {
//	        return server.TextResult("Echo: " + in.Message), nil
//	    }))
//
// # Resources
//
// Resources are addressed by URI or URI template. The last placeholder of a
// template matches the rest of the URI, slashes included:
//
//	err := srv.Resource("file://{path}").
//	    Name("Files").
//	    Lister(listFiles).
//	    Handler(readFile)
//
// # Prompts
//
// Prompt arguments are derived from the typed argument struct:
//
//	err := srv.Prompt("explain").
//	    Description("Explain a topic").
//	    Handler(server.TypedPrompt(renderExplain))
//
// # Sessions
//
// A Session wraps one client connection. It rejects capability requests
// until initialize succeeds, handles requests one at a time, and refuses
// everything after Close. Failures are returned as JSON-RPC error responses
// via ToProtocolError.
package server
