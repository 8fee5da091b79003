package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// tag returns middleware that records name on the way in and out.
func tag(trace *[]string, name string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			*trace = append(*trace, name+">")
			resp, err := next(ctx, req)
			*trace = append(*trace, "<"+name)
			return resp, err
		}
	}
}

func TestChain(t *testing.T) {
	tests := []struct {
		name  string
		build func(trace *[]string) []Middleware
		want  string
	}{
		{"empty", func(*[]string) []Middleware { return nil }, "handler"},
		{"single", func(tr *[]string) []Middleware { return []Middleware{tag(tr, "a")} }, "a> handler <a"},
		{
			"first is outermost",
			func(tr *[]string) []Middleware { return []Middleware{tag(tr, "a"), tag(tr, "b"), tag(tr, "c")} },
			"a> b> c> handler <c <b <a",
		},
		{
			"nil entries skipped",
			func(tr *[]string) []Middleware { return []Middleware{nil, tag(tr, "a"), nil} },
			"a> handler <a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trace []string
			h := Chain(tt.build(&trace)...)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				trace = append(trace, "handler")
				return protocol.NewResponse(req.ID, "ok"), nil
			})
			if _, err := h(context.Background(), &protocol.Request{ID: json.RawMessage(`1`), Method: "ping"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := strings.Join(trace, " "); got != tt.want {
				t.Errorf("trace = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("short circuit", func(t *testing.T) {
		reached := false
		deny := func(HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return protocol.NewErrorResponse(req.ID, protocol.NewAccessDenied("blocked")), nil
			}
		}
		resp, _ := Chain(deny)(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			reached = true
			return nil, nil
		})(context.Background(), &protocol.Request{ID: json.RawMessage(`1`), Method: "tools/call"})

		if reached {
			t.Error("handler ran behind a short-circuiting middleware")
		}
		if resp == nil || resp.Error == nil || resp.Error.Code != protocol.CodeAccessDenied {
			t.Errorf("resp = %+v, want access denied", resp)
		}
	})
}

func TestRequestID(t *testing.T) {
	capture := func(dst *string) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			*dst = RequestIDFromContext(ctx)
			return protocol.NewResponse(req.ID, "ok"), nil
		}
	}

	t.Run("assigns uuid", func(t *testing.T) {
		var got string
		_, _ = RequestID()(capture(&got))(context.Background(), &protocol.Request{Method: "ping"})
		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("request id %q is not a UUID: %v", got, err)
		}
		if meta := protocol.MetaValue(ContextWithRequestID(context.Background(), got), protocol.MetaRequestID); meta != got {
			t.Errorf("MetaRequestID = %q, want %q", meta, got)
		}
	})

	t.Run("distinct per request", func(t *testing.T) {
		seen := map[string]bool{}
		var got string
		h := RequestID()(capture(&got))
		for range 50 {
			_, _ = h(context.Background(), &protocol.Request{Method: "ping"})
			seen[got] = true
		}
		if len(seen) != 50 {
			t.Errorf("unique ids = %d, want 50", len(seen))
		}
	})

	t.Run("keeps caller supplied id", func(t *testing.T) {
		var got string
		ctx := protocol.WithMeta(context.Background(), protocol.MetaRequestID, "from-header")
		_, _ = RequestID()(capture(&got))(ctx, &protocol.Request{Method: "ping"})
		if got != "from-header" {
			t.Errorf("request id = %q, want %q", got, "from-header")
		}
	})

	t.Run("custom generator", func(t *testing.T) {
		n := 0
		gen := func() string { n++; return fmt.Sprintf("req-%d", n) }
		var got string
		h := RequestIDWithGenerator(gen)(capture(&got))
		_, _ = h(context.Background(), &protocol.Request{Method: "ping"})
		_, _ = h(context.Background(), &protocol.Request{Method: "ping"})
		if got != "req-2" {
			t.Errorf("request id = %q, want %q", got, "req-2")
		}
	})

	t.Run("empty without middleware", func(t *testing.T) {
		if got := RequestIDFromContext(context.Background()); got != "" {
			t.Errorf("RequestIDFromContext() = %q, want empty", got)
		}
	})
}

func TestStack(t *testing.T) {
	tests := []struct {
		name string
		opts StackOptions
		want int
	}{
		{"logger only", StackOptions{}, 3},
		{"with tracing", StackOptions{ServiceName: "svc"}, 4},
		{"everything", StackOptions{ServiceName: "svc", MaxRequestBytes: 1024, RateLimit: 5, Timeout: time.Second}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Stack(tt.opts)); got != tt.want {
				t.Errorf("len(Stack) = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("logs rejected requests", func(t *testing.T) {
		logger := &mockLogger{}
		h := Chain(Stack(StackOptions{Logger: logger, MaxRequestBytes: 8})...)(
			func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return protocol.NewResponse(req.ID, "ok"), nil
			})

		resp, _ := h(context.Background(), &protocol.Request{
			ID:     json.RawMessage(`1`),
			Method: "tools/call",
			Params: json.RawMessage(`{"name":"echo","arguments":{"message":"far too long"}}`),
		})
		if resp == nil || resp.Error == nil {
			t.Fatalf("resp = %+v, want size limit error", resp)
		}
		if len(logger.entries) == 0 {
			t.Fatal("rejected request was not logged")
		}
		if id, _ := fieldValue(logger.entries[len(logger.entries)-1].fields, "request_id"); id == "" || id == nil {
			t.Error("log entry missing request_id")
		}
	})

	t.Run("default stack", func(t *testing.T) {
		if got := len(DefaultStack(NopLogger{})); got != 3 {
			t.Errorf("len(DefaultStack) = %d, want 3", got)
		}
	})
}
