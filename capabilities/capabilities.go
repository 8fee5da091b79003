// Package capabilities provides the built-in tools, resources and prompts.
package capabilities

import (
	"net/http"
	"time"

	"github.com/fast-ish/mcp-server-template/server"
)

// Fetch defaults.
const (
	DefaultFetchTimeout  = 30 * time.Second
	DefaultFetchMaxChars = 10000
)

// Options selects which built-ins Register installs.
type Options struct {
	// Version is reported by server://info.
	Version string

	EnableTools     bool
	EnableResources bool
	EnablePrompts   bool

	// EnableHTTP adds the fetch_url tool.
	EnableHTTP bool
	// EnableFilesystem adds the file://{path} resource rooted at AllowedDir.
	EnableFilesystem bool
	AllowedDir       string

	FetchTimeout  time.Duration
	FetchMaxChars int
	// HTTPClient overrides the client used by fetch_url.
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.Version == "" {
		o.Version = "0.1.0"
	}
	if o.AllowedDir == "" {
		o.AllowedDir = "."
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.FetchMaxChars <= 0 {
		o.FetchMaxChars = DefaultFetchMaxChars
	}
	return o
}

// Register installs the enabled built-ins on srv in a fixed order: tools,
// then resources, then prompts. The first registration error is returned.
func Register(srv *server.Server, opts Options) error {
	opts = opts.withDefaults()

	if opts.EnableTools {
		if err := registerTools(srv, opts); err != nil {
			return err
		}
	}
	if opts.EnableResources {
		if err := registerResources(srv, opts); err != nil {
			return err
		}
	}
	if opts.EnablePrompts {
		if err := registerPrompts(srv); err != nil {
			return err
		}
	}
	return nil
}
