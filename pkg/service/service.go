// Package service runs the lovetree HTTP API: observability bootstrap, server lifecycle
// and signal-driven graceful shutdown.
//
// Example usage:
//
//	b, err := service.NewBootstrap(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Cleanup(context.Background())
//
//	svc := service.NewHTTPService("api", cfg.Server, router, service.WithLogger(b.Logger))
//	if err := service.Run(ctx, svc); err != nil {
//	    b.Logger.Fatal().Err(err).Msg("service failed")
//	}
package service

import "context"

// Service is a long-running component with an explicit start and graceful stop.
type Service interface {
	// Start returns once the service accepts work, or with the error that prevented it.
	Start(ctx context.Context) error

	// Stop drains in-flight work until ctx expires.
	Stop(ctx context.Context) error

	Name() string

	// Health returns nil while the service is running.
	Health() error
}
