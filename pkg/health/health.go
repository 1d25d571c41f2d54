package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Aggregate statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Component statuses.
const (
	CheckOK    = "ok"
	CheckError = "error"
)

// Health holds the registered checkers and a short-lived copy of the last result.
type Health struct {
	mu       sync.RWMutex
	checkers map[string]registration

	cacheMu      sync.RWMutex
	cachedResult *Result
	cacheExpiry  time.Time
	cacheTTL     time.Duration

	checkTimeout time.Duration
}

type registration struct {
	checker  Checker
	optional bool
}

// Result is the aggregated outcome of all checks.
type Result struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
}

// New returns a Health with a 5s check timeout and a 1s result cache.
func New() *Health {
	return NewWithConfig(5*time.Second, time.Second)
}

// NewWithConfig returns a Health with the given check timeout and result cache TTL.
func NewWithConfig(checkTimeout, cacheTTL time.Duration) *Health {
	return &Health{
		checkers:     make(map[string]registration),
		checkTimeout: checkTimeout,
		cacheTTL:     cacheTTL,
	}
}

// RegisterChecker registers a required component, replacing any checker of that name.
func (h *Health) RegisterChecker(name string, checker Checker) {
	h.register(name, registration{checker: checker})
}

// RegisterOptionalChecker registers a component whose failure degrades the service
// without making it unready.
func (h *Health) RegisterOptionalChecker(name string, checker Checker) {
	h.register(name, registration{checker: checker, optional: true})
}

func (h *Health) register(name string, r registration) {
	h.mu.Lock()
	h.checkers[name] = r
	h.mu.Unlock()
	h.ClearCache()
}

// UnregisterChecker removes a checker and reports whether one was registered.
func (h *Health) UnregisterChecker(name string) bool {
	h.mu.Lock()
	_, ok := h.checkers[name]
	delete(h.checkers, name)
	h.mu.Unlock()
	if ok {
		h.ClearCache()
	}
	return ok
}

// Check runs every checker concurrently. Results are reused for the cache TTL.
func (h *Health) Check(ctx context.Context) *Result {
	h.cacheMu.RLock()
	if h.cachedResult != nil && time.Now().Before(h.cacheExpiry) {
		result := h.cachedResult
		h.cacheMu.RUnlock()
		return result
	}
	h.cacheMu.RUnlock()

	result := h.run(ctx)

	h.cacheMu.Lock()
	h.cachedResult = result
	h.cacheExpiry = time.Now().Add(h.cacheTTL)
	h.cacheMu.Unlock()

	return result
}

func (h *Health) run(ctx context.Context) *Result {
	h.mu.RLock()
	checkers := make(map[string]registration, len(h.checkers))
	for name, r := range h.checkers {
		checkers[name] = r
	}
	h.mu.RUnlock()

	type response struct {
		name   string
		result CheckResult
	}
	responses := make(chan response, len(checkers))
	var wg sync.WaitGroup

	for name, r := range checkers {
		wg.Add(1)
		go func(name string, r registration) {
			defer wg.Done()
			result := CheckResult{Status: CheckOK, Optional: r.optional}
			if err := h.checkOne(ctx, r.checker); err != nil {
				result.Status = CheckError
				result.Message = err.Error()
			}
			responses <- response{name: name, result: result}
		}(name, r)
	}
	wg.Wait()
	close(responses)

	result := &Result{Status: StatusHealthy, Checks: make(map[string]CheckResult, len(checkers))}
	for resp := range responses {
		result.Checks[resp.name] = resp.result
		if resp.result.Status == CheckOK {
			continue
		}
		if !resp.result.Optional {
			result.Status = StatusUnhealthy
		} else if result.Status == StatusHealthy {
			result.Status = StatusDegraded
		}
	}
	return result
}

func (h *Health) checkOne(ctx context.Context, c Checker) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.checkTimeout)
		defer cancel()
	}
	return c.Check(ctx)
}

// CheckComponent runs one named checker, bypassing the result cache.
func (h *Health) CheckComponent(ctx context.Context, name string) error {
	h.mu.RLock()
	r, ok := h.checkers[name]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("health checker %q not registered", name)
	}
	return h.checkOne(ctx, r.checker)
}

// IsReady reports whether every required component is healthy.
func (h *Health) IsReady(ctx context.Context) bool {
	return h.Check(ctx).Status != StatusUnhealthy
}

// ClearCache forces the next Check to run the checkers.
func (h *Health) ClearCache() {
	h.cacheMu.Lock()
	h.cachedResult = nil
	h.cacheExpiry = time.Time{}
	h.cacheMu.Unlock()
}
