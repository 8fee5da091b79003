package server

import (
	"context"
	"errors"
	"testing"

	"github.com/fast-ish/mcp-server-template/protocol"
)

func staticText(text string) ResourceHandler {
	return func(ctx context.Context, uri string, params map[string]string) (*protocol.ResourceContents, error) {
		return &protocol.ResourceContents{Text: text}, nil
	}
}

func TestResourceBuilder(t *testing.T) {
	t.Run("registers resource with all options", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		err := srv.Resource("db://users/{id}").
			Name("User Record").
			Description("Get user by ID").
			MimeType("application/json").
			Handler(staticText("{}"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		resources := srv.Resources()
		if len(resources) != 1 {
			t.Fatalf("expected 1 resource, got %d", len(resources))
		}
		r := resources[0]
		if r.URI != "db://users/{id}" {
			t.Errorf("URI = %q, want %q", r.URI, "db://users/{id}")
		}
		if r.Name != "User Record" {
			t.Errorf("Name = %q, want %q", r.Name, "User Record")
		}
		if r.MimeType != "application/json" {
			t.Errorf("MimeType = %q, want %q", r.MimeType, "application/json")
		}
	})

	t.Run("name defaults to uri", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		if err := srv.Resource("server://info").Handler(staticText("{}")); err != nil {
			t.Fatal(err)
		}
		if got := srv.Resources()[0].Name; got != "server://info" {
			t.Errorf("Name = %q, want %q", got, "server://info")
		}
	})

	t.Run("duplicate uri fails", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		_ = srv.Resource("server://info").Handler(staticText("a"))

		err := srv.Resource("server://info").Handler(staticText("b"))
		if !errors.Is(err, ErrDuplicateName) {
			t.Errorf("err = %v, want ErrDuplicateName", err)
		}
	})

	t.Run("repeated placeholder fails", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		if err := srv.Resource("x://{a}/{a}").Handler(staticText("")); err == nil {
			t.Error("expected error for repeated placeholder")
		}
	})
}

func TestResource_Match(t *testing.T) {
	tests := []struct {
		name     string
		template string
		uri      string
		want     map[string]string
		ok       bool
	}{
		{"static exact", "server://info", "server://info", map[string]string{}, true},
		{"static mismatch", "server://info", "server://info2", nil, false},
		{"single segment", "db://users/{id}", "db://users/42", map[string]string{"id": "42"}, true},
		{"last placeholder spans slashes", "file://{path}", "file://docs/a/b.md", map[string]string{"path": "docs/a/b.md"}, true},
		{"earlier placeholder is one segment", "repo://{owner}/{path}", "repo://me/src/main.go", map[string]string{"owner": "me", "path": "src/main.go"}, true},
		{"empty value", "file://{path}", "file://", nil, false},
		{"regex metacharacters escaped", "a.b://{x}", "aXb://y", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resource{info: ResourceInfo{URI: tt.template}}
			if err := r.compileTemplate(); err != nil {
				t.Fatalf("compileTemplate() error: %v", err)
			}

			got, ok := r.Match(tt.uri)
			if ok != tt.ok {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.uri, ok, tt.ok)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("params[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestResource_Read(t *testing.T) {
	srv := New(Info{Name: "test", Version: "1.0.0"})
	err := srv.Resource("file://{path}").
		MimeType("text/plain").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*protocol.ResourceContents, error) {
			return &protocol.ResourceContents{Text: "read " + params["path"]}, nil
		})
	if err != nil {
		t.Fatal(err)
	}

	res, err := srv.FindResource("file://notes/today.txt")
	if err != nil {
		t.Fatalf("FindResource() error: %v", err)
	}
	contents, err := res.Read(context.Background(), "file://notes/today.txt")
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if contents.Text != "read notes/today.txt" {
		t.Errorf("Text = %q, want %q", contents.Text, "read notes/today.txt")
	}
	if contents.URI != "file://notes/today.txt" {
		t.Errorf("URI = %q, want %q", contents.URI, "file://notes/today.txt")
	}
	if contents.MimeType != "text/plain" {
		t.Errorf("MimeType = %q, want %q", contents.MimeType, "text/plain")
	}

	if _, err := srv.FindResource("http://elsewhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestServer_ListResources(t *testing.T) {
	srv := New(Info{Name: "test", Version: "1.0.0"})
	_ = srv.Resource("server://info").Name("Server Info").Handler(staticText("{}"))
	_ = srv.Resource("file://{path}").
		Lister(func(ctx context.Context) ([]ResourceInfo, error) {
			return []ResourceInfo{
				{URI: "file://a.txt", Name: "a.txt"},
				{URI: "file://b/c.md", Name: "b/c.md"},
			}, nil
		}).
		Handler(staticText(""))
	_ = srv.Resource("db://{id}").Handler(staticText(""))
	_ = srv.Resource("broken://{x}").
		Lister(func(ctx context.Context) ([]ResourceInfo, error) {
			return nil, errors.New("boom")
		}).
		Handler(staticText(""))

	got := srv.ListResources(context.Background())
	want := []string{"server://info", "file://a.txt", "file://b/c.md"}
	if len(got) != len(want) {
		t.Fatalf("ListResources() len = %d, want %d", len(got), len(want))
	}
	for i, uri := range want {
		if got[i].URI != uri {
			t.Errorf("ListResources()[%d].URI = %q, want %q", i, got[i].URI, uri)
		}
	}
}
