package protocol

import "fmt"

// JSON-RPC 2.0 reserved codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Server codes, taken from the implementation-defined range.
const (
	CodeNotFound       = -32001
	CodeRateLimited    = -32003
	CodeAccessDenied   = -32004
	CodeRequestTimeout = -32005
)

var codeNames = map[int]string{
	CodeParseError:     "parse error",
	CodeInvalidRequest: "invalid request",
	CodeMethodNotFound: "method not found",
	CodeInvalidParams:  "invalid params",
	CodeInternalError:  "internal error",
	CodeNotFound:       "not found",
	CodeRateLimited:    "rate limited",
	CodeAccessDenied:   "access denied",
	CodeRequestTimeout: "request timeout",
}

// CodeName returns a short label for a code, or "error <code>" when the
// code is not one this server emits.
func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("error %d", code)
}

// Error is the error object of a JSON-RPC response. It doubles as a Go
// error so handlers can return it directly.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return "mcp " + CodeName(e.Code) + ": " + e.Message
}

// Is matches any *Error carrying the same code, so callers can test
// errors.Is(err, protocol.NewNotFound("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data any) *Error {
	c := *e
	c.Data = data
	return &c
}

// Errorf builds an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewParseError(msg string) *Error     { return &Error{Code: CodeParseError, Message: msg} }
func NewInvalidRequest(msg string) *Error { return &Error{Code: CodeInvalidRequest, Message: msg} }
func NewMethodNotFound(msg string) *Error { return &Error{Code: CodeMethodNotFound, Message: msg} }
func NewInvalidParams(msg string) *Error  { return &Error{Code: CodeInvalidParams, Message: msg} }
func NewInternalError(msg string) *Error  { return &Error{Code: CodeInternalError, Message: msg} }
func NewNotFound(msg string) *Error       { return &Error{Code: CodeNotFound, Message: msg} }
func NewRateLimited(msg string) *Error    { return &Error{Code: CodeRateLimited, Message: msg} }
func NewRequestTimeout(msg string) *Error { return &Error{Code: CodeRequestTimeout, Message: msg} }

// NewAccessDenied reports a sandbox refusal. The message reaches the
// caller verbatim, so it must not name filesystem paths.
func NewAccessDenied(msg string) *Error { return &Error{Code: CodeAccessDenied, Message: msg} }
