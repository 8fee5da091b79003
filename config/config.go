// Package config loads server settings from MCP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every variable name.
const Prefix = "MCP_"

// Transport names accepted in MCP_TRANSPORT.
const (
	TransportStdio     = "stdio"
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Config holds server settings.
type Config struct {
	ServerName        string `env:"SERVER_NAME" envDefault:"mcp-server-template"`
	ServerDescription string `env:"SERVER_DESCRIPTION" envDefault:"A minimal MCP server"`
	Instructions      string `env:"INSTRUCTIONS"`

	Transport   string   `env:"TRANSPORT" envDefault:"stdio"`
	Addr        string   `env:"ADDR" envDefault:":8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	// AllowedDir is the filesystem root for file:// resources. It is read
	// once at startup.
	AllowedDir string `env:"ALLOWED_DIR" envDefault:"."`

	EnableTools      bool `env:"ENABLE_TOOLS" envDefault:"true"`
	EnableResources  bool `env:"ENABLE_RESOURCES" envDefault:"true"`
	EnablePrompts    bool `env:"ENABLE_PROMPTS" envDefault:"true"`
	EnableHTTP       bool `env:"ENABLE_HTTP" envDefault:"true"`
	EnableFilesystem bool `env:"ENABLE_FILESYSTEM" envDefault:"true"`

	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	FetchMaxChars int           `env:"FETCH_MAX_CHARS" envDefault:"10000"`

	// Zero disables the limit.
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"0s"`
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"0"`
	RateBurst       int           `env:"RATE_BURST" envDefault:"0"`
	MaxRequestBytes int64         `env:"MAX_REQUEST_BYTES" envDefault:"1048576"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// OTLPEndpoint is a host:port for OTLP gRPC export. Empty disables
	// telemetry export.
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" envDefault:"false"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(envMap(os.Environ()))
}

// LoadFrom reads the configuration from environ, a map of variable names to
// values, and validates it.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix:      Prefix,
		Environment: environ,
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportStdio, TransportHTTP, TransportWebSocket:
	default:
		errs = append(errs, fmt.Errorf("%sTRANSPORT: unknown transport %q", Prefix, c.Transport))
	}
	if c.Transport != TransportStdio && c.Addr == "" {
		errs = append(errs, fmt.Errorf("%sADDR: required for %s transport", Prefix, c.Transport))
	}

	if c.EnableResources && c.EnableFilesystem {
		info, err := os.Stat(c.AllowedDir)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%sALLOWED_DIR: %w", Prefix, err))
		case !info.IsDir():
			errs = append(errs, fmt.Errorf("%sALLOWED_DIR: %s is not a directory", Prefix, c.AllowedDir))
		}
	}

	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%sFETCH_TIMEOUT: must be positive", Prefix))
	}
	if c.FetchMaxChars <= 0 {
		errs = append(errs, fmt.Errorf("%sFETCH_MAX_CHARS: must be positive", Prefix))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("%sREQUEST_TIMEOUT: must not be negative", Prefix))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("%sRATE_LIMIT and %sRATE_BURST must not be negative", Prefix, Prefix))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err)
	}
	return level, nil
}

// Burst returns RateBurst, or RateLimit when no burst is set.
func (c *Config) Burst() int {
	if c.RateBurst > 0 {
		return c.RateBurst
	}
	return c.RateLimit
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
