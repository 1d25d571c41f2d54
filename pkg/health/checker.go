// Package health runs liveness and readiness checks for the lovetree service.
//
// Components are registered as required or optional. A failing required component makes
// the service unhealthy and fails readiness. A failing optional component, such as the
// cache, only degrades it: the service keeps serving from the store, so readiness passes
// and reports "degraded".
//
//	h := health.New()
//	h.RegisterChecker("database", pool)
//	h.RegisterOptionalChecker("cache", cacheClient)
//
//	r.Get("/health/live", h.LivenessHandler())
//	r.Get("/health/ready", h.ReadinessHandler())
package health

import (
	"context"
)

// Checker reports whether a component is usable. Implementations must honour the
// deadline of ctx and return nil when healthy.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}
