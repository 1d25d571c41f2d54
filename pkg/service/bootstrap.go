package service

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/metrics"
	"github.com/Combine-Capital/lovetree/pkg/tracing"
)

// Bootstrap holds the process-wide observability components.
type Bootstrap struct {
	Config         *config.Config
	Logger         *logging.Logger
	TracerProvider *sdktrace.TracerProvider
	cleanup        *CleanupHandler
}

// BootstrapOption configures NewBootstrap.
type BootstrapOption func(*bootstrapConfig)

type bootstrapConfig struct {
	skipMetrics bool
	skipTracing bool
	logger      *logging.Logger
}

func WithoutMetrics() BootstrapOption {
	return func(c *bootstrapConfig) { c.skipMetrics = true }
}

func WithoutTracing() BootstrapOption {
	return func(c *bootstrapConfig) { c.skipTracing = true }
}

// WithBootstrapLogger uses logger instead of building one from cfg.Log.
func WithBootstrapLogger(logger *logging.Logger) BootstrapOption {
	return func(c *bootstrapConfig) { c.logger = logger }
}

// NewBootstrap initializes logging, then metrics, then tracing. On failure everything
// already initialized is cleaned up.
func NewBootstrap(ctx context.Context, cfg *config.Config, opts ...BootstrapOption) (*Bootstrap, error) {
	bc := &bootstrapConfig{}
	for _, opt := range opts {
		opt(bc)
	}

	logger := bc.logger
	if logger == nil {
		logger = logging.New(cfg.Log)
	}
	logger = logger.WithServiceName(cfg.Service.Name)

	b := &Bootstrap{
		Config:  cfg,
		Logger:  logger,
		cleanup: NewCleanupHandler(logger),
	}
	logger.Info().
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Msg("service starting")

	if !bc.skipMetrics {
		if err := metrics.Init(cfg.Metrics); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		if err := metrics.InitStandardMetrics(cfg.Metrics.Namespace); err != nil {
			_ = b.Cleanup(ctx)
			return nil, fmt.Errorf("failed to register standard metrics: %w", err)
		}
		b.AddCleanup(metrics.Shutdown)
		if cfg.Metrics.Enabled {
			logger.Info().Int("port", cfg.Metrics.Port).Str("path", cfg.Metrics.Path).Msg("metrics initialized")
		}
	}

	if !bc.skipTracing && cfg.Tracing.Enabled {
		tp, shutdown, err := tracing.NewTracerProvider(ctx, cfg.Tracing, cfg.Service.Name, cfg.Service.Version)
		if err != nil {
			_ = b.Cleanup(ctx)
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		b.TracerProvider = tp
		b.AddCleanup(func(ctx context.Context) error { return shutdown(ctx) })
		logger.Info().
			Str("endpoint", cfg.Tracing.Endpoint).
			Float64("sample_rate", cfg.Tracing.SampleRate).
			Msg("tracing initialized")
	}

	return b, nil
}

// AddCleanup registers fn to run during Cleanup, before everything registered earlier.
func (b *Bootstrap) AddCleanup(fn func(context.Context) error) {
	b.cleanup.Register(fn)
}

// Cleanup releases every registered resource in reverse order and returns the first
// failure.
func (b *Bootstrap) Cleanup(ctx context.Context) error {
	err := b.cleanup.Execute(ctx)
	b.Logger.Info().Msg("cleanup completed")
	return err
}
