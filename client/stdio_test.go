package client_test

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"testing"
	"time"

	mcp "github.com/fast-ish/mcp-server-template"
	"github.com/fast-ish/mcp-server-template/client"
	"github.com/fast-ish/mcp-server-template/server"
	"github.com/fast-ish/mcp-server-template/transport"
)

type echoInput struct {
	Message string `json:"message" jsonschema:"required"`
}

func newEchoServer(t *testing.T) *mcp.Server {
	t.Helper()
	srv := mcp.NewServer(mcp.ServerInfo{Name: "echo-server", Version: "1.0.0"})
	err := srv.Tool("echo").Description("Echoes input").Handler(mcp.TypedTool(
		func(ctx context.Context, in echoInput) (*mcp.ToolResult, error) {
			return mcp.TextResult(in.Message), nil
		}))
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

// startStdio serves srv over in-process pipes and returns a client
// transport wired to it.
func startStdio(t *testing.T, srv *server.Server) *client.StdioTransport {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := transport.NewStdio(transport.WithStdin(inR), transport.WithStdout(outW)).
			Serve(context.Background(), mcp.Sessions(srv))
		outW.Close()
		done <- err
	}()

	tr := client.NewStreamTransport(outR, inW)
	t.Cleanup(func() {
		tr.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return tr
}

func TestStreamTransport(t *testing.T) {
	tr := startStdio(t, newEchoServer(t))
	c := client.New(tr, client.WithTimeout(5*time.Second))
	ctx := context.Background()

	info, err := c.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if info.ServerInfo.Name != "echo-server" {
		t.Errorf("server name = %q, want %q", info.ServerInfo.Name, "echo-server")
	}

	res, err := c.CallTool(ctx, "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if res.Content[0].Text != "hi" {
		t.Errorf("text = %q, want %q", res.Content[0].Text, "hi")
	}
}

func TestStreamTransport_ServerGone(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	go io.Copy(io.Discard, inR)

	tr := client.NewStreamTransport(outR, inW)
	outW.Close()

	c := client.New(tr, client.WithTimeout(time.Second))
	if err := c.Ping(context.Background()); !errors.Is(err, client.ErrClosed) {
		t.Errorf("Ping() error = %v, want %v", err, client.ErrClosed)
	}
	tr.Close()
}

func TestStdioTransport_Subprocess(t *testing.T) {
	t.Run("closes cleanly", func(t *testing.T) {
		if _, err := exec.LookPath("cat"); err != nil {
			t.Skip("cat not available")
		}
		tr, err := client.NewStdioTransport("cat")
		if err != nil {
			t.Fatalf("NewStdioTransport() error = %v", err)
		}
		if tr.Stderr() == nil {
			t.Error("Stderr() should be available for a subprocess")
		}
		if err := tr.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if err := tr.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})

	t.Run("missing command", func(t *testing.T) {
		if _, err := client.NewStdioTransport("nonexistent-command-that-should-not-exist"); err == nil {
			t.Fatal("expected error for nonexistent command")
		}
	})
}
