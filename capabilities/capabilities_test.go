package capabilities

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fast-ish/mcp-server-template/sandbox"
	"github.com/fast-ish/mcp-server-template/schema"
	"github.com/fast-ish/mcp-server-template/server"
)

func newServer(t *testing.T, opts Options) *server.Server {
	t.Helper()
	srv := server.New(server.Info{Name: "test-server", Version: "0.1.0", Description: "A test server"})
	if err := Register(srv, opts); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return srv
}

func allEnabled(dir string) Options {
	return Options{
		EnableTools:      true,
		EnableResources:  true,
		EnablePrompts:    true,
		EnableHTTP:       true,
		EnableFilesystem: true,
		AllowedDir:       dir,
	}
}

func TestRegister(t *testing.T) {
	t.Run("registers everything in order", func(t *testing.T) {
		srv := newServer(t, allEnabled(t.TempDir()))

		var tools []string
		for _, ti := range srv.Tools() {
			tools = append(tools, ti.Name)
		}
		if got := strings.Join(tools, ","); got != "echo,get_time,fetch_url" {
			t.Errorf("tools = %q, want %q", got, "echo,get_time,fetch_url")
		}

		var resources []string
		for _, r := range srv.Resources() {
			resources = append(resources, r.URI)
		}
		if got := strings.Join(resources, ","); got != "server://info,file://{path}" {
			t.Errorf("resources = %q", got)
		}

		var prompts []string
		for _, p := range srv.Prompts() {
			prompts = append(prompts, p.Name)
		}
		if got := strings.Join(prompts, ","); got != "code_review,explain" {
			t.Errorf("prompts = %q", got)
		}
	})

	t.Run("honours disabled features", func(t *testing.T) {
		srv := newServer(t, Options{EnableTools: true})

		if n := len(srv.Tools()); n != 2 {
			t.Errorf("expected 2 tools without HTTP, got %d", n)
		}
		if n := len(srv.Resources()); n != 0 {
			t.Errorf("expected no resources, got %d", n)
		}
		if n := len(srv.Prompts()); n != 0 {
			t.Errorf("expected no prompts, got %d", n)
		}
	})

	t.Run("twice on one server fails", func(t *testing.T) {
		srv := newServer(t, Options{EnableTools: true})
		if err := Register(srv, Options{EnableTools: true}); !errors.Is(err, server.ErrDuplicateName) {
			t.Errorf("err = %v, want ErrDuplicateName", err)
		}
	})
}

func TestEcho(t *testing.T) {
	srv := newServer(t, Options{EnableTools: true})
	tool, err := srv.GetTool("echo")
	if err != nil {
		t.Fatal(err)
	}

	result, err := tool.Call(context.Background(), map[string]any{"message": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Content[0].Text; got != "Echo: hello" {
		t.Errorf("text = %q, want %q", got, "Echo: hello")
	}

	_, err = tool.Call(context.Background(), map[string]any{})
	var verrs schema.ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].Path != "message" {
		t.Errorf("err = %v, want validation error on message", err)
	}
}

func TestGetTime(t *testing.T) {
	now := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	tests := []struct {
		name string
		tz   string
		want string
	}{
		{"utc", "UTC", "Tuesday, March 05, 2024 at 02:07:09 PM UTC"},
		{"named zone", "America/New_York", "Tuesday, March 05, 2024 at 09:07:09 AM EST"},
		{"unknown zone falls back", "Mars/Olympus", "Tuesday, March 05, 2024 at 02:07:09 PM UTC"},
		{"empty zone", "", "Tuesday, March 05, 2024 at 02:07:09 PM UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetTime(now, GetTimeArgs{Timezone: tt.tz}).Content[0].Text
			if got != tt.want {
				t.Errorf("GetTime() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("defaults to UTC through the tool", func(t *testing.T) {
		srv := newServer(t, Options{EnableTools: true})
		tool, _ := srv.GetTool("get_time")

		result, err := tool.Call(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasSuffix(result.Content[0].Text, " UTC") {
			t.Errorf("text = %q, want UTC suffix", result.Content[0].Text)
		}
	})
}

func TestFetcher(t *testing.T) {
	t.Run("returns body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("hello from upstream"))
		}))
		defer ts.Close()

		f := NewFetcher(ts.Client(), time.Second, 100)
		result, err := f.Fetch(context.Background(), FetchURLArgs{URL: ts.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %q", result.Content[0].Text)
		}
		if result.Content[0].Text != "hello from upstream" {
			t.Errorf("text = %q", result.Content[0].Text)
		}
	})

	t.Run("truncates to character cap", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("é", 50)))
		}))
		defer ts.Close()

		f := NewFetcher(ts.Client(), time.Second, 10)
		result, _ := f.Fetch(context.Background(), FetchURLArgs{URL: ts.URL})
		if got := result.Content[0].Text; got != strings.Repeat("é", 10) {
			t.Errorf("text = %q, want 10 characters", got)
		}
	})

	t.Run("timeout is tool output", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer ts.Close()
		defer close(release)

		f := NewFetcher(ts.Client(), 20*time.Millisecond, 100)
		result, err := f.Fetch(context.Background(), FetchURLArgs{URL: ts.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("IsError = false, want true")
		}
		if !strings.HasPrefix(result.Content[0].Text, "Error fetching URL: ") {
			t.Errorf("text = %q", result.Content[0].Text)
		}
	})

	t.Run("unreachable host is tool output", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		addr := ts.URL
		ts.Close()

		f := NewFetcher(nil, time.Second, 100)
		result, err := f.Fetch(context.Background(), FetchURLArgs{URL: addr})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("IsError = false, want true")
		}
	})

	t.Run("credentials are not echoed", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		addr := strings.Replace(ts.URL, "http://", "http://user:hunter2@", 1)
		ts.Close()

		f := NewFetcher(nil, time.Second, 100)
		result, _ := f.Fetch(context.Background(), FetchURLArgs{URL: addr})
		if strings.Contains(result.Content[0].Text, "hunter2") {
			t.Errorf("text %q leaks credentials", result.Content[0].Text)
		}
	})

	t.Run("rejects non-http urls", func(t *testing.T) {
		f := NewFetcher(nil, time.Second, 100)
		for _, u := range []string{"file:///etc/passwd", "not a url", "ftp://example.com", "http://"} {
			_, err := f.Fetch(context.Background(), FetchURLArgs{URL: u})
			var verr *schema.ValidationError
			if !errors.As(err, &verr) || verr.Path != "url" {
				t.Errorf("Fetch(%q) err = %v, want validation error on url", u, err)
			}
		}
	})
}

func TestServerInfoResource(t *testing.T) {
	srv := newServer(t, Options{EnableTools: true, EnableResources: true, Version: "1.2.3"})
	res, err := srv.FindResource(ServerInfoURI)
	if err != nil {
		t.Fatal(err)
	}

	first, err := res.Read(context.Background(), ServerInfoURI)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	second, _ := res.Read(context.Background(), ServerInfoURI)
	if first.Text != second.Text {
		t.Error("server://info is not byte-identical across reads")
	}
	if first.MimeType != "application/json" {
		t.Errorf("MimeType = %q, want application/json", first.MimeType)
	}

	want := `{
  "name": "test-server",
  "version": "1.2.3",
  "description": "A test server",
  "capabilities": {
    "tools": true,
    "resources": true,
    "prompts": false
  }
}`
	if first.Text != want {
		t.Errorf("Text =\n%s\nwant\n%s", first.Text, want)
	}

	var doc ServerInfo
	if err := json.Unmarshal([]byte(first.Text), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFiles(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "data")
	writeFiles(t, base, map[string]string{
		"data/notes.txt":      "hello",
		"data/docs/readme.md": "# readme",
		"data/config.yml":     "a: 1",
		"data/.env":           "SECRET=1",
		"data-evil/x":         "evil",
		"etc/passwd":          "root",
	})
	files := &Files{Root: root}

	t.Run("lists non-hidden files", func(t *testing.T) {
		infos, err := files.List(context.Background())
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		var uris []string
		for _, i := range infos {
			uris = append(uris, i.URI+"|"+i.MimeType)
		}
		want := "file://config.yml|application/yaml,file://docs/readme.md|text/markdown,file://notes.txt|text/plain"
		if got := strings.Join(uris, ","); got != want {
			t.Errorf("List() = %q, want %q", got, want)
		}
		if infos[1].Name != "readme.md" || infos[1].Description != "File: docs/readme.md" {
			t.Errorf("infos[1] = %+v", infos[1])
		}
	})

	t.Run("reads inside root", func(t *testing.T) {
		got, err := files.Read(context.Background(), "file://notes.txt", map[string]string{"path": "notes.txt"})
		if err != nil {
			t.Fatalf("Read() error: %v", err)
		}
		if got.Text != "hello" || got.MimeType != "text/plain" {
			t.Errorf("Read() = %+v", got)
		}
	})

	for _, p := range []string{"../etc/passwd", "../data-evil/x", "docs/../../etc/passwd"} {
		t.Run("denies "+p, func(t *testing.T) {
			_, err := files.Read(context.Background(), "file://"+p, map[string]string{"path": p})
			if !errors.Is(err, sandbox.ErrAccessDenied) {
				t.Errorf("err = %v, want ErrAccessDenied", err)
			}
		})
	}

	t.Run("missing file is not found", func(t *testing.T) {
		_, err := files.Read(context.Background(), "file://nope.txt", map[string]string{"path": "nope.txt"})
		var rerr *sandbox.ResolveError
		if !errors.As(err, &rerr) {
			t.Errorf("err = %v, want *sandbox.ResolveError", err)
		}
	})
}

func TestPrompts(t *testing.T) {
	srv := newServer(t, Options{EnablePrompts: true})

	t.Run("code_review defaults", func(t *testing.T) {
		p, _ := srv.GetPrompt("code_review")
		result, err := p.Get(context.Background(), map[string]any{"code": "x = 1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "Please review the following unknown code with a focus on all:\n\n```unknown\nx = 1\n```\n\n" +
			"Provide:\n1. A summary of what the code does\n2. Potential issues or improvements\n3. Specific suggestions with code examples"
		if got := result.Messages[0].Content.Text; got != want {
			t.Errorf("text =\n%s\nwant\n%s", got, want)
		}
		if result.Messages[0].Role != "user" {
			t.Errorf("Role = %q, want user", result.Messages[0].Role)
		}
	})

	t.Run("code_review treats empty language as unknown", func(t *testing.T) {
		p, _ := srv.GetPrompt("code_review")
		result, err := p.Get(context.Background(), map[string]any{"code": "x", "language": ""})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := result.Messages[0].Content.Text; !strings.HasPrefix(got, "Please review the following unknown code with a focus on all:") {
			t.Errorf("text = %q", got)
		}
	})

	t.Run("code_review rejects unknown focus", func(t *testing.T) {
		p, _ := srv.GetPrompt("code_review")
		_, err := p.Get(context.Background(), map[string]any{"code": "x", "focus": "style"})
		var verrs schema.ValidationErrors
		if !errors.As(err, &verrs) || verrs[0].Kind != schema.KindEnum {
			t.Errorf("err = %v, want enum violation", err)
		}
	})

	t.Run("explain", func(t *testing.T) {
		p, _ := srv.GetPrompt("explain")
		result, err := p.Get(context.Background(), map[string]any{"topic": "goroutines", "audience": "expert"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "Please explain \"goroutines\" for a expert audience.\n\nInclude:\n- A clear definition\n- Key concepts\n- Practical examples\n- Common misconceptions (if any)"
		if got := result.Messages[0].Content.Text; got != want {
			t.Errorf("text =\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("argument descriptors", func(t *testing.T) {
		infos := srv.Prompts()
		args := infos[0].Arguments
		if len(args) != 3 || args[0].Name != "code" || !args[0].Required || args[2].Name != "focus" {
			t.Errorf("code_review arguments = %+v", args)
		}
		if args[2].Description != "What to focus on (security, performance, readability, all)" {
			t.Errorf("focus description = %q", args[2].Description)
		}
	})
}

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"a.json":       "application/json",
		"B.YAML":       "application/yaml",
		"main.go":      "text/x-go",
		"lib.rs":       "text/x-rust",
		"index.ts":     "text/typescript",
		"image.png":    "text/plain",
		"Makefile":     "text/plain",
		"dir/notes.md": "text/markdown",
	}
	for name, want := range tests {
		if got := MimeType(name); got != want {
			t.Errorf("MimeType(%q) = %q, want %q", name, got, want)
		}
	}
}
