package protocol

// Content is a single content item in a tool result or prompt message.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextContent returns a text content item.
func TextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}

// ResourceContents is the payload of a resource read.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// PromptMessage is a role-tagged message produced by a prompt.
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// ToolDescriptor is the wire form of a tool in tools/list.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema"`
}

// ResourceDescriptor is the wire form of a resource in resources/list.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplateDescriptor is the wire form of a URI template in
// resources/templates/list.
type ResourceTemplateDescriptor struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PromptArgumentDescriptor is the wire form of one prompt argument.
type PromptArgumentDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// PromptDescriptor is the wire form of a prompt in prompts/list.
type PromptDescriptor struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	Arguments   []PromptArgumentDescriptor `json:"arguments,omitempty"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ListResourcesResult is the result of resources/list.
type ListResourcesResult struct {
	Resources []ResourceDescriptor `json:"resources"`
}

// ListResourceTemplatesResult is the result of resources/templates/list.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplateDescriptor `json:"resourceTemplates"`
}

// ListPromptsResult is the result of prompts/list.
type ListPromptsResult struct {
	Prompts []PromptDescriptor `json:"prompts"`
}

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ReadResourceResult is the result of resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// GetPromptResult is the result of prompts/get.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// ServerInfo identifies the server during initialization.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
	Instructions    string         `json:"instructions,omitempty"`
}
