package health

import (
	"net/http"

	"github.com/goccy/go-json"
)

// LivenessHandler always answers 200: the process is up. It checks no dependency.
func (h *Health) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadinessHandler answers 200 while every required component is healthy, including
// when the service is degraded, and 503 otherwise. The body lists each component.
func (h *Health) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := h.Check(r.Context())
		writeJSON(w, statusCode(result), result)
	}
}

// HealthHandler combines liveness and readiness in one response.
func (h *Health) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := h.Check(r.Context())
		writeJSON(w, statusCode(result), map[string]any{
			"liveness":  "alive",
			"readiness": result,
		})
	}
}

func statusCode(result *Result) int {
	if result.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
