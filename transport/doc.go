// Package transport carries MCP JSON-RPC messages between clients and
// sessions.
//
// A transport asks its SessionFactory for a handler per client connection
// and closes it when the connection ends:
//
//	factory := func() transport.Handler { return server.NewSession(srv) }
//	err := transport.NewStdio().Serve(ctx, factory)
//
// # Stdio
//
// One session, newline-delimited JSON on stdin and stdout. Logs must go to
// stderr.
//
// # HTTP
//
//   - POST /mcp: one JSON-RPC message per request. An initialize without
//     an Mcp-Session-Id header starts a session and the response carries
//     its id in that header; later requests must send it back.
//   - DELETE /mcp: ends the session named by Mcp-Session-Id.
//   - GET /health: liveness and the open session count.
//
// Notifications are answered with 202 and no body. CORS and graceful
// shutdown with connection draining are optional.
//
// # WebSocket
//
// One session per connection, one JSON-RPC message per text frame.
package transport
