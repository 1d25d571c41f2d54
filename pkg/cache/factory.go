package cache

import (
	"context"
	"fmt"

	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/logging"
)

// New builds the client selected by cfg.Backend and, for Redis, connects it. An
// unreachable Redis is not an error: the client is returned in degraded mode and keeps
// reconnecting in the background. Only invalid configuration fails.
func New(ctx context.Context, cfg config.CacheConfig, logger *logging.Logger) (Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	switch cfg.Backend {
	case config.CacheBackendRedis:
		c, err := NewRedis(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := c.Connect(ctx); err != nil {
			logger.Warn().Err(err).Msg("starting with cache in degraded mode")
		}
		return c, nil

	case config.CacheBackendMemory:
		return NewMemory(cfg, logger)

	case config.CacheBackendNone, "":
		logger.Info().Msg("cache disabled")
		return NopClient{}, nil

	default:
		return nil, errors.NewInvalidInput("cache.backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}
