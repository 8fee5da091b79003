package middleware

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// Logger is the structured logger middleware writes to. NewSlogLogger
// adapts log/slog.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair of a log entry.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// MetaSessionID is re-exported for middleware that keys on the session.
const MetaSessionID = protocol.MetaSessionID

// Logging writes one entry per request once it has been handled.
//
// Levels follow the outcome: debug for notifications, info for results,
// warn for error responses and for tool results flagged isError, error
// for internal errors and Go errors. Every protocol.Meta value on the
// context is logged under its own key.
func Logging(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			fields := requestFields(ctx, req, time.Since(start))
			switch {
			case err != nil:
				logger.Error("request failed", append(fields, F("error", err.Error()))...)
			case resp != nil && resp.Error != nil:
				fields = append(fields, F("error_code", resp.Error.Code), F("error", resp.Error.Message))
				if resp.Error.Code == protocol.CodeInternalError {
					logger.Error("request failed", fields...)
				} else {
					logger.Warn("request rejected", fields...)
				}
			case req.IsNotification():
				logger.Debug("notification handled", fields...)
			case toolFailed(resp):
				logger.Warn("tool reported error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
			return resp, err
		}
	}
}

func requestFields(ctx context.Context, req *protocol.Request, elapsed time.Duration) []Field {
	meta := protocol.MetaFromContext(ctx)
	fields := make([]Field, 0, 3+len(meta))
	fields = append(fields, F("method", req.Method), F("duration", elapsed))
	if target := req.Target(); target != "" {
		fields = append(fields, F("target", target))
	}
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		fields = append(fields, F(k, meta[k]))
	}
	return fields
}

func toolFailed(resp *protocol.Response) bool {
	if resp == nil {
		return false
	}
	r, ok := resp.Result.(*protocol.CallToolResult)
	return ok && r.IsError
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
