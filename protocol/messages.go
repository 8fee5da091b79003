package protocol

import "encoding/json"

// JSONRPCVersion is the only envelope version accepted on the wire.
const JSONRPCVersion = "2.0"

// Request is a JSON-RPC request or, when ID is empty, a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the sender expects no reply.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Validate checks the envelope. It does not look at params.
func (r *Request) Validate() *Error {
	switch {
	case r.JSONRPC != JSONRPCVersion:
		return NewInvalidRequest(`jsonrpc must be "2.0"`)
	case r.Method == "":
		return NewInvalidRequest("method is required")
	}
	return nil
}

// Target names what a request acts on: the tool or prompt name, or the
// resource URI. Empty for methods that address nothing in particular.
func (r *Request) Target() string {
	switch r.Method {
	case MethodToolsCall, MethodPromptsGet, MethodResourcesRead:
	default:
		return ""
	}
	var p struct {
		Name string `json:"name"`
		URI  string `json:"uri"`
	}
	if len(r.Params) == 0 || json.Unmarshal(r.Params, &p) != nil {
		return ""
	}
	if r.Method == MethodResourcesRead {
		return p.URI
	}
	return p.Name
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse answers id with result.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewErrorResponse answers id with err. A nil id is used when the request
// could not be parsed far enough to recover one.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}
