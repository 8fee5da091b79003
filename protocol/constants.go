package protocol

// MCPVersion is the protocol revision this server speaks and announces in
// its initialize result.
const MCPVersion = "2024-11-05"

// Lifecycle methods.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
)

// Capability methods.
const (
	MethodToolsList             = "tools/list"
	MethodToolsCall             = "tools/call"
	MethodResourcesList         = "resources/list"
	MethodResourceTemplatesList = "resources/templates/list"
	MethodResourcesRead         = "resources/read"
	MethodPromptsList           = "prompts/list"
	MethodPromptsGet            = "prompts/get"
)

// Keys of the capabilities object in an initialize result.
const (
	CapabilityTools     = "tools"
	CapabilityResources = "resources"
	CapabilityPrompts   = "prompts"
)

// Prompt message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentTypeText is the only content item type this server produces.
const ContentTypeText = "text"
