package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Combine-Capital/lovetree/pkg/logging"
)

// ShutdownConfig configures signal-driven shutdown.
type ShutdownConfig struct {
	// Timeout bounds the whole shutdown of all services.
	Timeout time.Duration

	// Signals trigger shutdown. Empty means SIGINT and SIGTERM.
	Signals []os.Signal

	Logger *logging.Logger
}

// DefaultShutdownConfig returns a 30s timeout on SIGINT and SIGTERM.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Run starts services in order, blocks until ctx is cancelled or a shutdown signal
// arrives, then stops them in reverse order.
func Run(ctx context.Context, services ...Service) error {
	return RunWithConfig(ctx, DefaultShutdownConfig(), services...)
}

// RunWithConfig is Run with an explicit shutdown configuration.
func RunWithConfig(ctx context.Context, cfg ShutdownConfig, services ...Service) error {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	signals := cfg.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	started := make([]Service, 0, len(services))
	var runErr error
	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			runErr = fmt.Errorf("failed to start service %s: %w", svc.Name(), err)
			break
		}
		started = append(started, svc)
	}

	if runErr == nil {
		<-ctx.Done()
		logger.Info().Msg("shutdown requested")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	for i := len(started) - 1; i >= 0; i-- {
		svc := started[i]
		if err := svc.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("service", svc.Name()).Msg("service stop failed")
			if runErr == nil {
				runErr = err
			}
			continue
		}
		logger.Info().Str("service", svc.Name()).Msg("service stopped")
	}
	return runErr
}

// CleanupFunc releases one resource during shutdown.
type CleanupFunc func(context.Context) error

// CleanupHandler runs registered cleanups in reverse registration order.
type CleanupHandler struct {
	logger   *logging.Logger
	cleanups []CleanupFunc
}

// NewCleanupHandler returns an empty handler. A nil logger discards errors it reports.
func NewCleanupHandler(logger *logging.Logger) *CleanupHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CleanupHandler{logger: logger}
}

// Register adds fn; it will run before every previously registered cleanup.
func (h *CleanupHandler) Register(fn CleanupFunc) {
	h.cleanups = append(h.cleanups, fn)
}

// Execute runs every cleanup, logging failures, and returns the first error.
func (h *CleanupHandler) Execute(ctx context.Context) error {
	var firstErr error
	for i := len(h.cleanups) - 1; i >= 0; i-- {
		if err := h.cleanups[i](ctx); err != nil {
			h.logger.Error().Err(err).Msg("cleanup failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
