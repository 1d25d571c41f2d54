package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestDuration *Histogram
	httpRequestCount    *Counter
	httpResponseSize    *Histogram

	cacheOperations        *Counter
	cacheOperationDuration *Histogram
	cacheState             *Gauge
	cacheReconnects        *Counter
	cachePatternDeleted    *Counter
	repositoryLookups      *Counter
	repositoryInvalidation *Counter

	standardMetricsOnce sync.Once
)

// Cache operation results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped" // client not connected, no call made
)

// InitStandardMetrics registers the HTTP, cache and repository instruments under
// namespace. It requires Init and is a no-op after the first successful call.
func InitStandardMetrics(namespace string) error {
	var initErr error

	standardMetricsOnce.Do(func() {
		durationBuckets := []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

		httpRequestDuration, initErr = NewHistogram(HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Labels:    []string{"method", "route", "status_code"},
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		})
		if initErr != nil {
			return
		}

		httpRequestCount, initErr = NewCounter(CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
			Labels:    []string{"method", "route", "status_code"},
		})
		if initErr != nil {
			return
		}

		httpResponseSize, initErr = NewHistogram(HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Labels:    []string{"method", "route"},
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		})
		if initErr != nil {
			return
		}

		cacheOperations, initErr = NewCounter(CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache client operations by outcome",
			Labels:    []string{"operation", "result"},
		})
		if initErr != nil {
			return
		}

		cacheOperationDuration, initErr = NewHistogram(HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operation_duration_seconds",
			Help:      "Cache client operation latency in seconds",
			Labels:    []string{"operation"},
			Buckets:   durationBuckets,
		})
		if initErr != nil {
			return
		}

		cacheState, initErr = NewGauge(GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "connection_state",
			Help:      "Cache connection state (0 disconnected, 1 connecting, 2 connected, 3 error, 4 reconnecting)",
		})
		if initErr != nil {
			return
		}

		cacheReconnects, initErr = NewCounter(CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts made by the cache client",
			Labels:    []string{"result"},
		})
		if initErr != nil {
			return
		}

		cachePatternDeleted, initErr = NewCounter(CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "pattern_deleted_keys_total",
			Help:      "Keys removed by pattern deletes",
		})
		if initErr != nil {
			return
		}

		repositoryLookups, initErr = NewCounter(CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "cache_lookups_total",
			Help:      "Cache-aside lookups by repository method and result",
			Labels:    []string{"method", "result"},
		})
		if initErr != nil {
			return
		}

		repositoryInvalidation, initErr = NewCounter(CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "cache_invalidations_total",
			Help:      "Cache invalidations issued after writes, by repository method",
			Labels:    []string{"method"},
		})
	})

	return initErr
}

// RecordCacheOperation counts one cache client call and observes its latency.
func RecordCacheOperation(operation, result string, elapsed time.Duration) {
	if cacheOperations != nil {
		cacheOperations.Inc(operation, result)
	}
	if cacheOperationDuration != nil && result != ResultSkipped {
		cacheOperationDuration.Observe(elapsed.Seconds(), operation)
	}
}

// SetCacheState publishes the cache connection state.
func SetCacheState(state int) {
	if cacheState != nil {
		cacheState.Set(float64(state))
	}
}

// RecordCacheReconnect counts a reconnect attempt; ok reports whether it succeeded.
func RecordCacheReconnect(ok bool) {
	if cacheReconnects == nil {
		return
	}
	if ok {
		cacheReconnects.Inc(ResultOK)
	} else {
		cacheReconnects.Inc(ResultError)
	}
}

// AddPatternDeleted counts keys removed by a pattern delete.
func AddPatternDeleted(n int) {
	if cachePatternDeleted != nil && n > 0 {
		cachePatternDeleted.Add(float64(n))
	}
}

// RecordRepositoryLookup counts a cache-aside read as a hit or a miss.
func RecordRepositoryLookup(method string, hit bool) {
	if repositoryLookups == nil {
		return
	}
	if hit {
		repositoryLookups.Inc(method, ResultHit)
	} else {
		repositoryLookups.Inc(method, ResultMiss)
	}
}

// RecordRepositoryInvalidation counts a post-write invalidation.
func RecordRepositoryInvalidation(method string) {
	if repositoryInvalidation != nil {
		repositoryInvalidation.Inc(method)
	}
}
