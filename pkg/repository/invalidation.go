package repository

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/metrics"
)

// target is one invalidation step: a single key, or a glob pattern.
type target struct {
	key     string
	pattern bool
}

func delKey(k string) target { return target{key: k} }
func delPattern(p string) target { return target{key: p, pattern: true} }

func (t target) String() string { return t.key }

// invalidate removes targets in the given order. It runs after a successful store write,
// so it never fails the write: a failed delete is logged and left to expire.
//
// The caller's cancellation is ignored so a client that hangs up right after the write
// still gets its stale entries removed; the cache client's own operation timeout bounds
// each step.
func (c *Cached) invalidate(ctx context.Context, method string, targets ...target) {
	ctx = context.WithoutCancel(ctx)
	logger := c.logger.With().Str(logging.Operation, method).Logger()

	keys := make([]string, 0, len(targets))
	for _, t := range targets {
		keys = append(keys, t.key)
		if t.pattern {
			n := c.cache.DeleteByPattern(ctx, t.key)
			logger.Debug().Str(logging.CachePattern, t.key).Int("deleted", n).Msg("invalidated pattern")
			continue
		}
		if !c.cache.Delete(ctx, t.key) {
			logger.Warn().Str(logging.CacheKey, t.key).Msg("cache invalidation failed, entry will expire by TTL")
		}
	}

	metrics.RecordRepositoryInvalidation(method)
	trace.SpanFromContext(ctx).SetAttributes(attribute.StringSlice("cache.invalidated", keys))
}
