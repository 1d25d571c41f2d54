// Package metrics exposes Prometheus instruments for lovetree: HTTP request metrics, cache
// client metrics and cache-aside hit/miss counters. Every recording helper is a no-op
// until Init and InitStandardMetrics have run, so libraries can record unconditionally.
//
// Example usage:
//
//	if err := metrics.Init(cfg.Metrics); err != nil {
//	    log.Fatal(err)
//	}
//	defer metrics.Shutdown(context.Background())
//	_ = metrics.InitStandardMetrics(cfg.Metrics.Namespace)
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	registry    *prometheus.Registry
	registryMu  sync.RWMutex
	initialized bool

	server   *http.Server
	serverMu sync.Mutex
)

// Init creates the registry and, when cfg.Enabled, serves it on cfg.Port at cfg.Path.
// With metrics disabled the registry still exists so instruments can be created, but
// nothing is exposed. Calling Init again is a no-op.
func Init(cfg config.MetricsConfig) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if initialized {
		return nil
	}

	registry = prometheus.NewRegistry()
	initialized = true

	if !cfg.Enabled {
		return nil
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, handlerFor(registry))

	serverMu.Lock()
	server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	srv := server
	serverMu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("metrics server stopped")
		}
	}()

	return nil
}

// Shutdown stops the metrics HTTP server.
func Shutdown(ctx context.Context) error {
	serverMu.Lock()
	defer serverMu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	server = nil
	return err
}

// Registry returns the registry, or nil before Init.
func Registry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// Handler serves the registry in the Prometheus exposition format. It responds 503
// before Init.
func Handler() http.Handler {
	reg := Registry()
	if reg == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not initialized", http.StatusServiceUnavailable)
		})
	}
	return handlerFor(reg)
}

func handlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// IsInitialized reports whether Init has been called.
func IsInitialized() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return initialized
}
