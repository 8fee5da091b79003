package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcp "github.com/fast-ish/mcp-server-template"
	"github.com/fast-ish/mcp-server-template/capabilities"
	"github.com/fast-ish/mcp-server-template/config"
	"github.com/fast-ish/mcp-server-template/middleware"
	"github.com/fast-ish/mcp-server-template/telemetry"
	"github.com/fast-ish/mcp-server-template/transport"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcp-server",
		Short: "A minimal MCP server",
		Long: `mcp-server exposes tools, resources and prompts to an MCP client.

Configuration is read from MCP_* environment variables. Flags given on the
command line take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcp-server %s (%s)\n", version, commit)
		},
	}
}

// serveFlags holds command-line overrides. Only flags the user set are
// applied.
type serveFlags struct {
	transport  string
	addr       string
	allowedDir string
	logLevel   string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&flags.transport, "transport", "", "transport: stdio, http or websocket (MCP_TRANSPORT)")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "listen address for http and websocket (MCP_ADDR)")
	cmd.Flags().StringVar(&flags.allowedDir, "allowed-dir", "", "root directory for file:// resources (MCP_ALLOWED_DIR)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (MCP_LOG_LEVEL)")
	return cmd
}

// loadConfig reads the environment, applies set flags and validates.
func loadConfig(cmd *cobra.Command, flags serveFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	set := cmd.Flags().Changed
	if set("transport") {
		cfg.Transport = flags.transport
	}
	if set("addr") {
		cfg.Addr = flags.addr
	}
	if set("allowed-dir") {
		cfg.AllowedDir = flags.allowedDir
	}
	if set("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.Level()
	// stdout is the stdio transport's channel.
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.ServerName,
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}

	t, err := newTransport(cfg)
	if err != nil {
		return err
	}

	logger.Info("starting",
		"name", cfg.ServerName,
		"version", version,
		"transport", cfg.Transport,
		"addr", t.Addr(),
	)
	err = mcp.Serve(ctx, t, srv, mcp.WithMiddleware(stack(cfg, middleware.NewSlogLogger(logger))...))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}

func newServer(cfg *config.Config) (*mcp.Server, error) {
	var opts []mcp.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcp.WithInstructions(cfg.Instructions))
	}
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:        cfg.ServerName,
		Version:     version,
		Description: cfg.ServerDescription,
	}, opts...)

	err := capabilities.Register(srv, capabilities.Options{
		Version:          version,
		EnableTools:      cfg.EnableTools,
		EnableResources:  cfg.EnableResources,
		EnablePrompts:    cfg.EnablePrompts,
		EnableHTTP:       cfg.EnableHTTP,
		EnableFilesystem: cfg.EnableFilesystem,
		AllowedDir:       cfg.AllowedDir,
		FetchTimeout:     cfg.FetchTimeout,
		FetchMaxChars:    cfg.FetchMaxChars,
	})
	if err != nil {
		return nil, fmt.Errorf("register capabilities: %w", err)
	}
	return srv, nil
}

// stack builds the middleware chain from cfg, outermost first.
func stack(cfg *config.Config, logger middleware.Logger) []mcp.Middleware {
	return middleware.Stack(middleware.StackOptions{
		Logger:          logger,
		ServiceName:     cfg.ServerName,
		MaxRequestBytes: cfg.MaxRequestBytes,
		RateLimit:       cfg.RateLimit,
		Burst:           cfg.Burst(),
		Timeout:         cfg.RequestTimeout,
	})
}

func newTransport(cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportStdio:
		return transport.NewStdio(), nil
	case config.TransportHTTP:
		var opts []transport.HTTPOption
		if cfg.MaxRequestBytes > 0 {
			opts = append(opts, transport.WithMaxBodyBytes(cfg.MaxRequestBytes))
		}
		if len(cfg.CORSOrigins) > 0 {
			cors := transport.DefaultCORSConfig()
			cors.AllowOrigins = cfg.CORSOrigins
			opts = append(opts, transport.WithCORS(cors))
		}
		return transport.NewHTTP(cfg.Addr, opts...), nil
	case config.TransportWebSocket:
		var opts []transport.WebSocketOption
		if cfg.MaxRequestBytes > 0 {
			opts = append(opts, transport.WithWebSocketMaxMessage(cfg.MaxRequestBytes))
		}
		if len(cfg.CORSOrigins) > 0 {
			opts = append(opts, transport.WithWebSocketOrigins(cfg.CORSOrigins...))
		}
		return transport.NewWebSocket(cfg.Addr, opts...), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
