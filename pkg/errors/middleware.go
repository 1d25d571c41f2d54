package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// RecoveryFunc converts a recovered panic value into an error.
type RecoveryFunc func(interface{}) error

// DefaultRecoveryFunc turns a panic into a PermanentError carrying the stack trace.
func DefaultRecoveryFunc(p interface{}) error {
	return NewPermanent(fmt.Sprintf("panic recovered: %v\nstack trace:\n%s", p, debug.Stack()), nil)
}

// RecoveryMiddleware recovers handler panics and answers with a 500 JSON error.
// A nil recoveryFunc selects DefaultRecoveryFunc.
func RecoveryMiddleware(recoveryFunc RecoveryFunc) func(http.Handler) http.Handler {
	if recoveryFunc == nil {
		recoveryFunc = DefaultRecoveryFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					WriteHTTPError(w, recoveryFunc(p))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
