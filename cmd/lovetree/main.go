// Command lovetree serves the love tree API over the cache-aside repository.
//
// Configuration comes from an optional YAML file and LOVETREE_* environment variables
// (REDIS_URL and DATABASE_URL are honoured too). Without a database the process runs on
// the in-memory store; without a cache address it runs uncached.
//
//	lovetree -config config.yaml
//	LOVETREE_CACHE_BACKEND=memory lovetree
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Combine-Capital/lovetree/pkg/api"
	"github.com/Combine-Capital/lovetree/pkg/cache"
	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/Combine-Capital/lovetree/pkg/database"
	"github.com/Combine-Capital/lovetree/pkg/health"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/repository"
	"github.com/Combine-Capital/lovetree/pkg/service"
	"github.com/Combine-Capital/lovetree/pkg/store"
	"github.com/Combine-Capital/lovetree/pkg/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "lovetree: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath, "LOVETREE")
	if err != nil {
		return err
	}

	boot, err := service.NewBootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := boot.Cleanup(cleanupCtx); err != nil {
			boot.Logger.Error().Err(err).Msg("cleanup failed")
		}
	}()
	logger := boot.Logger

	hc := health.New()

	// The store and the cache connect independently, so they start in parallel.
	var (
		st          store.Store
		cacheClient cache.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st, err = openStore(gctx, cfg, logger, boot, hc)
		return err
	})
	g.Go(func() error {
		var err error
		cacheClient, err = cache.New(gctx, cfg.Cache, logger)
		return err
	})
	if err := g.Wait(); err != nil {
		if cacheClient != nil {
			_ = cacheClient.Close()
		}
		return err
	}
	boot.AddCleanup(func(context.Context) error { return cacheClient.Close() })

	if checker, ok := cacheClient.(health.Checker); ok {
		hc.RegisterOptionalChecker("cache", checker)
	}

	repo := repository.NewCached(st, cacheClient,
		repository.WithLogger(logger),
		repository.WithTracerProvider(tracerProvider(boot)),
	)

	router := api.NewRouter(repo,
		api.WithLogger(logger),
		api.WithHealth(hc),
		api.WithServiceName(cfg.Service.Name),
		api.WithMetrics(cfg.Metrics.Namespace),
	)

	httpSvc := service.NewHTTPService("api", cfg.Server, router, service.WithLogger(logger))

	shutdown := service.DefaultShutdownConfig()
	shutdown.Timeout = cfg.Server.ShutdownTimeout
	shutdown.Logger = logger
	return service.RunWithConfig(ctx, shutdown, httpSvc)
}

// openStore connects PostgreSQL when configured and falls back to the in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger, boot *service.Bootstrap, hc *health.Health) (store.Store, error) {
	if !cfg.Database.Enabled() {
		logger.Warn().Msg("no database configured, using the in-memory store")
		return store.NewMemory(), nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	boot.AddCleanup(func(context.Context) error {
		pool.Close()
		return nil
	})
	hc.RegisterChecker("database", pool)

	pg := postgres.New(pool, postgres.WithQueryTimeout(cfg.Database.QueryTimeout))
	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := pg.Migrate(migrateCtx); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info().Msg("database schema applied")
	}
	return pg, nil
}

func tracerProvider(boot *service.Bootstrap) trace.TracerProvider {
	if boot.TracerProvider != nil {
		return boot.TracerProvider
	}
	return otel.GetTracerProvider()
}
