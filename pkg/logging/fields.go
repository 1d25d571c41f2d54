// Package logging provides zerolog-based structured logging for lovetree. Loggers travel
// in context.Context and pick up trace, span and request IDs on the way out.
//
// Example usage:
//
//	logger := logging.New(config.LogConfig{Level: "info", Format: "json"})
//	logger.Info().Str(logging.CacheKey, "tree:42").Msg("cache hit")
package logging

// Field names shared by every component.
const (
	TraceID     = "trace_id"
	SpanID      = "span_id"
	ServiceName = "service_name"
	Error       = "error"
	RequestID   = "request_id"
	Method      = "method"
	Path        = "path"
	StatusCode  = "status_code"
	Duration    = "duration_ms"
	UserID      = "user_id"
	Component   = "component"

	// Operation names the repository or cache operation being logged ("get", "GetLoveTree").
	Operation = "operation"

	// CacheKey is the fully qualified cache key.
	CacheKey = "cache_key"

	// CachePattern is the glob handed to a pattern delete.
	CachePattern = "cache_pattern"

	// CacheState is the connection state of the cache client.
	CacheState = "cache_state"

	// Attempt numbers a reconnect attempt.
	Attempt = "attempt"
)
