package logging

import (
	"context"

	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	loggerContextKey    = contextKey("lovetree.logger")
	requestIDContextKey = contextKey("lovetree.request_id")
)

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the logger stored in ctx, enriched with the IDs of the active
// OpenTelemetry span and any request ID. Without one it returns a default JSON logger at info level.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return enrichLoggerFromContext(ctx, logger)
	}
	return enrichLoggerFromContext(ctx, New(config.LogConfig{Level: "info", Format: "json"}))
}

func enrichLoggerFromContext(ctx context.Context, logger *Logger) *Logger {
	fields := make(map[string]interface{})

	if traceID := GetTraceID(ctx); traceID != "" {
		fields[TraceID] = traceID
	}
	if spanID := GetSpanID(ctx); spanID != "" {
		fields[SpanID] = spanID
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields[RequestID] = requestID
	}

	if len(fields) > 0 {
		return logger.WithFields(fields)
	}
	return logger
}

// GetTraceID returns the trace ID of the span in ctx, or "" without a valid span.
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID of the span in ctx, or "" without a valid span.
func GetSpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		return sc.SpanID().String()
	}
	return ""
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}

// Ctx is shorthand for FromContext(ctx).GetZerolog().
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx).GetZerolog()
}
