package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// otelHarness wires the middleware to in-memory span and metric readers.
type otelHarness struct {
	spans  *tracetest.InMemoryExporter
	reader *sdkmetric.ManualReader
	mw     Middleware
}

func newOTelHarness(t *testing.T, opts ...OTelOption) *otelHarness {
	t.Helper()
	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	opts = append([]OTelOption{WithTracerProvider(tp), WithMeterProvider(mp)}, opts...)
	return &otelHarness{spans: spans, reader: reader, mw: OTel(opts...)}
}

func (h *otelHarness) only(t *testing.T) tracetest.SpanStub {
	t.Helper()
	got := h.spans.GetSpans()
	if len(got) != 1 {
		t.Fatalf("spans = %d, want 1", len(got))
	}
	return got[0]
}

func (h *otelHarness) metric(t *testing.T, name string) metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	t.Fatalf("metric %q not recorded", name)
	return nil
}

func spanAttrs(s tracetest.SpanStub) map[attribute.Key]string {
	out := make(map[attribute.Key]string, len(s.Attributes))
	for _, kv := range s.Attributes {
		out[kv.Key] = kv.Value.Emit()
	}
	return out
}

func TestOTel_Spans(t *testing.T) {
	ok := func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return protocol.NewResponse(req.ID, "ok"), nil
	}

	t.Run("names span after method", func(t *testing.T) {
		h := newOTelHarness(t)
		if _, err := h.mw(ok)(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "tools/list"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		span := h.only(t)
		if span.Name != "mcp.tools/list" {
			t.Errorf("Name = %q, want %q", span.Name, "mcp.tools/list")
		}
		if span.Status.Code != codes.Ok {
			t.Errorf("Status = %v, want Ok", span.Status.Code)
		}
		if got := spanAttrs(span)["mcp.transport"]; got != "unknown" {
			t.Errorf("mcp.transport = %q, want %q", got, "unknown")
		}
	})

	t.Run("tags target session transport and request id", func(t *testing.T) {
		h := newOTelHarness(t, WithOTelServiceName("notes-server"))
		handler := RequestID()(h.mw(ok))

		ctx := protocol.WithMeta(context.Background(), MetaSessionID, "sess-9")
		ctx = protocol.WithMeta(ctx, protocol.MetaTransport, "websocket")
		req := &protocol.Request{
			ID:     json.RawMessage("1"),
			Method: "resources/read",
			Params: json.RawMessage(`{"uri":"server://info"}`),
		}
		if _, err := handler(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := spanAttrs(h.only(t))
		want := map[attribute.Key]string{
			"mcp.target":     "server://info",
			"mcp.session_id": "sess-9",
			"mcp.transport":  "websocket",
			"service.name":   "notes-server",
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("%s = %q, want %q", k, got[k], v)
			}
		}
		if got["mcp.request_id"] == "" {
			t.Error("mcp.request_id missing")
		}
	})

	t.Run("records go error", func(t *testing.T) {
		h := newOTelHarness(t)
		boom := errors.New("handler failed")
		_, err := h.mw(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			return nil, boom
		})(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "tools/call"})
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}

		span := h.only(t)
		if span.Status.Code != codes.Error {
			t.Errorf("Status = %v, want Error", span.Status.Code)
		}
		if len(span.Events) == 0 {
			t.Error("expected exception event")
		}
		if _, ok := spanAttrs(span)["mcp.error_code"]; ok {
			t.Error("plain error should not carry mcp.error_code")
		}
	})

	t.Run("records code from error response", func(t *testing.T) {
		h := newOTelHarness(t)
		_, _ = h.mw(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewErrorResponse(req.ID, protocol.NewNotFound("tool not found")), nil
		})(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "tools/call"})

		span := h.only(t)
		if got := spanAttrs(span)["mcp.error_code"]; got != "-32001" {
			t.Errorf("mcp.error_code = %q, want %q", got, "-32001")
		}
		if span.Status.Description != "tool not found" {
			t.Errorf("Status.Description = %q, want %q", span.Status.Description, "tool not found")
		}
	})

	t.Run("skips configured methods", func(t *testing.T) {
		h := newOTelHarness(t, WithOTelSkipMethods("ping"))
		if _, err := h.mw(ok)(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "ping"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(h.spans.GetSpans()); n != 0 {
			t.Errorf("spans = %d, want 0", n)
		}
	})

	t.Run("falls back to global providers", func(t *testing.T) {
		handler := OTel()(ok)
		if _, err := handler(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "ping"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestOTel_Metrics(t *testing.T) {
	h := newOTelHarness(t)
	handler := h.mw(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		if req.Method == "tools/call" {
			return protocol.NewErrorResponse(req.ID, protocol.NewInvalidParams("bad")), nil
		}
		return protocol.NewResponse(req.ID, "ok"), nil
	})

	ctx := protocol.WithMeta(context.Background(), protocol.MetaTransport, "stdio")
	for _, method := range []string{"tools/list", "tools/list", "tools/call"} {
		_, _ = handler(ctx, &protocol.Request{ID: json.RawMessage("1"), Method: method})
	}

	t.Run("counts requests by method and outcome", func(t *testing.T) {
		sum, ok := h.metric(t, "mcp.server.requests").(metricdata.Sum[int64])
		if !ok {
			t.Fatal("mcp.server.requests is not an int64 sum")
		}
		counts := map[string]int64{}
		for _, dp := range sum.DataPoints {
			method, _ := dp.Attributes.Value(attrMethod)
			outcome, _ := dp.Attributes.Value(attrOutcome)
			transport, _ := dp.Attributes.Value(attrTransport)
			if transport.AsString() != "stdio" {
				t.Errorf("mcp.transport = %q, want %q", transport.AsString(), "stdio")
			}
			counts[method.AsString()+"/"+outcome.AsString()] = dp.Value
		}
		if counts["tools/list/ok"] != 2 {
			t.Errorf("tools/list ok = %d, want 2", counts["tools/list/ok"])
		}
		if counts["tools/call/error"] != 1 {
			t.Errorf("tools/call error = %d, want 1", counts["tools/call/error"])
		}
	})

	t.Run("counts errors by code", func(t *testing.T) {
		sum, ok := h.metric(t, "mcp.server.errors").(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) != 1 {
			t.Fatalf("mcp.server.errors = %+v, want one data point", sum)
		}
		code, _ := sum.DataPoints[0].Attributes.Value(attrErrorCode)
		if code.AsInt64() != int64(protocol.CodeInvalidParams) {
			t.Errorf("mcp.error_code = %d, want %d", code.AsInt64(), protocol.CodeInvalidParams)
		}
	})

	t.Run("records duration in seconds", func(t *testing.T) {
		hist, ok := h.metric(t, "mcp.server.request.duration").(metricdata.Histogram[float64])
		if !ok {
			t.Fatal("mcp.server.request.duration is not a float64 histogram")
		}
		var total uint64
		for _, dp := range hist.DataPoints {
			total += dp.Count
		}
		if total != 3 {
			t.Errorf("duration samples = %d, want 3", total)
		}
	})

	t.Run("active requests return to zero", func(t *testing.T) {
		sum, ok := h.metric(t, "mcp.server.requests.active").(metricdata.Sum[int64])
		if !ok {
			t.Fatal("mcp.server.requests.active is not an int64 sum")
		}
		for _, dp := range sum.DataPoints {
			if dp.Value != 0 {
				t.Errorf("active = %d, want 0", dp.Value)
			}
		}
	})
}
