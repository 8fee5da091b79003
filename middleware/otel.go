package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fast-ish/mcp-server-template/protocol"
)

const instrumentationName = "github.com/fast-ish/mcp-server-template/middleware"

// Attribute keys shared by spans and metrics.
const (
	attrMethod    = attribute.Key("mcp.method")
	attrTransport = attribute.Key("mcp.transport")
	attrOutcome   = attribute.Key("mcp.outcome")
	attrErrorCode = attribute.Key("mcp.error_code")
	attrTarget    = attribute.Key("mcp.target")
	attrSession   = attribute.Key("mcp.session_id")
	attrRequestID = attribute.Key("mcp.request_id")
)

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skip           map[string]struct{}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) { c.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) { c.meterProvider = mp }
}

// WithOTelServiceName names the service on every span.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) { c.serviceName = name }
}

// WithOTelSkipMethods leaves the given methods uninstrumented.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skip[m] = struct{}{}
		}
	}
}

// instruments holds the RED metrics for dispatched requests.
type instruments struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newInstruments(meter metric.Meter) instruments {
	var in instruments
	// Instrument creation only fails on invalid names; the no-op fallbacks
	// returned alongside the error are still safe to use.
	in.requests, _ = meter.Int64Counter("mcp.server.requests",
		metric.WithDescription("Requests dispatched by the server"),
		metric.WithUnit("{request}"),
	)
	in.errors, _ = meter.Int64Counter("mcp.server.errors",
		metric.WithDescription("Requests answered with a JSON-RPC error"),
		metric.WithUnit("{error}"),
	)
	in.duration, _ = meter.Float64Histogram("mcp.server.request.duration",
		metric.WithDescription("Request handling time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	in.inFlight, _ = meter.Int64UpDownCounter("mcp.server.requests.active",
		metric.WithDescription("Requests currently being handled"),
		metric.WithUnit("{request}"),
	)
	return in
}

// OTel returns middleware that traces and measures each request.
//
// Every request gets a server span named "mcp.<method>". Spans carry the
// tool name or resource URI, the session and the request ID; metrics are
// keyed only by method, transport and outcome so their cardinality stays
// bounded.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "mcp-server",
		skip:           make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(instrumentationName)
	in := newInstruments(cfg.meterProvider.Meter(instrumentationName))

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if _, ok := cfg.skip[req.Method]; ok {
				return next(ctx, req)
			}

			base := []attribute.KeyValue{
				attrMethod.String(req.Method),
				attrTransport.String(transportOf(ctx)),
			}

			ctx, span := tracer.Start(ctx, "mcp."+req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(base...),
				trace.WithAttributes(attribute.String("service.name", cfg.serviceName)),
			)
			defer span.End()
			span.SetAttributes(requestAttrs(ctx, req)...)

			in.inFlight.Add(ctx, 1, metric.WithAttributes(base...))
			start := time.Now()

			resp, err := next(ctx, req)

			in.inFlight.Add(ctx, -1, metric.WithAttributes(base...))
			code, failed := errorCode(resp, err)

			outcome := "ok"
			if failed {
				outcome = "error"
			}
			measured := append(base, attrOutcome.String(outcome))
			in.requests.Add(ctx, 1, metric.WithAttributes(measured...))
			in.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(measured...))

			if !failed {
				span.SetStatus(codes.Ok, "")
				return resp, err
			}

			errAttrs := base
			if code != 0 {
				errAttrs = append(errAttrs, attrErrorCode.Int(code))
				span.SetAttributes(attrErrorCode.Int(code))
			}
			in.errors.Add(ctx, 1, metric.WithAttributes(errAttrs...))

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Error, resp.Error.Message)
			}
			return resp, err
		}
	}
}

// requestAttrs returns the high-cardinality attributes that belong on the
// span only.
func requestAttrs(ctx context.Context, req *protocol.Request) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, attrRequestID.String(id))
	}
	if id := protocol.MetaValue(ctx, MetaSessionID); id != "" {
		attrs = append(attrs, attrSession.String(id))
	}
	if target := req.Target(); target != "" {
		attrs = append(attrs, attrTarget.String(target))
	}
	return attrs
}

// errorCode reports whether the exchange failed and, when known, the
// JSON-RPC code it failed with. A zero code means the handler returned a
// plain Go error.
func errorCode(resp *protocol.Response, err error) (int, bool) {
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return perr.Code, true
		}
		return 0, true
	}
	if resp != nil && resp.Error != nil {
		return resp.Error.Code, true
	}
	return 0, false
}

func transportOf(ctx context.Context) string {
	if kind := protocol.MetaValue(ctx, protocol.MetaTransport); kind != "" {
		return kind
	}
	return "unknown"
}
