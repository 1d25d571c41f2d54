package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// HTTPMiddleware records request count, duration and response size. Requests are
// labelled by their chi route pattern ("/trees/{treeID}") rather than the raw path.
func HTTPMiddleware(namespace string) func(http.Handler) http.Handler {
	if err := InitStandardMetrics(namespace); err != nil {
		log.Warn().Err(err).Msg("standard metrics unavailable")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			statusCode := strconv.Itoa(wrapped.statusCode)

			if httpRequestDuration != nil {
				httpRequestDuration.Observe(time.Since(start).Seconds(), r.Method, route, statusCode)
			}
			if httpRequestCount != nil {
				httpRequestCount.Inc(r.Method, route, statusCode)
			}
			if httpResponseSize != nil {
				httpResponseSize.Observe(float64(wrapped.bytesWritten), r.Method, route)
			}
		})
	}
}

// routePattern returns the matched chi route, or "unmatched" outside a chi router or
// when no route matched. Raw paths would put every tree ID into a label value.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

func (m *metricsResponseWriter) WriteHeader(code int) {
	if !m.written {
		m.statusCode = code
		m.written = true
		m.ResponseWriter.WriteHeader(code)
	}
}

func (m *metricsResponseWriter) Write(b []byte) (int, error) {
	if !m.written {
		m.WriteHeader(http.StatusOK)
	}
	n, err := m.ResponseWriter.Write(b)
	m.bytesWritten += n
	return n, err
}
