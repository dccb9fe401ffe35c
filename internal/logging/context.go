package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	userCtxKey    struct{}
	requestCtxKey struct{}
	memoCtxKey    struct{}
	loggerCtxKey  struct{}
)

// maxIDLen caps correlation values copied into log entries.
const maxIDLen = 128

// UserIDField is the field name carrying the authenticated user.
const UserIDField = "user.id"

// ContextFields extracts correlation fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if v := UserIDFromContext(ctx); v != "" {
		fields = append(fields, zap.String(UserIDField, v))
	}
	if v := RequestIDFromContext(ctx); v != "" {
		fields = append(fields, zap.String("request.id", v))
	}
	if v := MemoIDFromContext(ctx); v != "" {
		fields = append(fields, zap.String("memo.id", v))
	}
	return fields
}

func withID(ctx context.Context, key any, id string) context.Context {
	if id == "" {
		return ctx
	}
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key any) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// WithUserID tags ctx with the authenticated user. Empty ids are ignored.
func WithUserID(ctx context.Context, id string) context.Context {
	return withID(ctx, userCtxKey{}, id)
}

// UserIDFromContext returns the user id, or "".
func UserIDFromContext(ctx context.Context) string { return idFrom(ctx, userCtxKey{}) }

// WithRequestID tags ctx with the inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string { return idFrom(ctx, requestCtxKey{}) }

// WithMemoID tags ctx with the memo being generated.
func WithMemoID(ctx context.Context, id string) context.Context {
	return withID(ctx, memoCtxKey{}, id)
}

// MemoIDFromContext returns the memo id, or "".
func MemoIDFromContext(ctx context.Context) string { return idFrom(ctx, memoCtxKey{}) }

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
