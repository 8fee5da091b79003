// Command mcp-server runs the built-in tools, resources and prompts over
// stdio, HTTP or WebSocket. Settings come from MCP_* environment variables;
// flags override them.
package main

import (
	"fmt"
	"os"
)

// Set by -ldflags at build time.
var (
	version = "0.1.0"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
