// Package protocol holds the MCP wire layer: JSON-RPC 2.0 requests,
// responses and errors, the method names the server answers, and the
// content and descriptor shapes carried in results.
//
// Capability authors normally work with the server package; transports and
// middleware work with this one.
//
// # Errors
//
// *Error implements error and compares by code under errors.Is. Besides
// the JSON-RPC codes, the server reports its capability failures in the
// implementation range:
//
//	CodeNotFound       = -32001  // unknown tool, prompt or resource
//	CodeRateLimited    = -32003
//	CodeAccessDenied   = -32004  // file path outside the allowed root
//	CodeRequestTimeout = -32005
//
// # Metadata
//
// Transports attach per-request metadata to the context with WithMeta;
// middleware reads it with MetaValue. MetaSessionID and MetaTransport are
// always set by the built-in transports.
package protocol
