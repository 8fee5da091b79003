package server

import (
	"context"
	"errors"
	"io/fs"

	"github.com/fast-ish/mcp-server-template/protocol"
	"github.com/fast-ish/mcp-server-template/sandbox"
	"github.com/fast-ish/mcp-server-template/schema"
)

// ToProtocolError maps a handler or lookup error onto a JSON-RPC error.
// Messages never carry resolved filesystem paths.
func ToProtocolError(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}

	var verrs schema.ValidationErrors
	if errors.As(err, &verrs) {
		return protocol.NewInvalidParams("invalid arguments: " + verrs.Error()).WithData(verrs)
	}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return protocol.NewInvalidParams("invalid arguments: " + verr.Error()).WithData(schema.ValidationErrors{verr})
	}

	var rerr *sandbox.ResolveError
	switch {
	case errors.Is(err, sandbox.ErrAccessDenied):
		return protocol.NewAccessDenied("access denied")
	case errors.Is(err, ErrNotFound):
		return protocol.NewNotFound(err.Error())
	case errors.As(err, &rerr):
		return protocol.NewNotFound(rerr.Error())
	case errors.Is(err, fs.ErrNotExist):
		return protocol.NewNotFound("not found")
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.NewRequestTimeout("request timed out")
	case errors.Is(err, context.Canceled):
		return protocol.NewInternalError("request cancelled")
	default:
		return protocol.NewInternalError(err.Error())
	}
}
