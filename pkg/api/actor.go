package api

import (
	"context"
	"net/http"
	"strings"

	lterrors "github.com/Combine-Capital/lovetree/pkg/errors"
)

// ActorHeader names the acting user of a request.
const ActorHeader = "X-User-ID"

type contextKey int

const actorKey contextKey = iota

// actorMiddleware stores the X-User-ID header, when present, in the request context.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(ActorHeader)); id != "" {
			r = r.WithContext(WithActor(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// WithActor returns ctx carrying the acting user ID.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// Actor returns the acting user, or Unauthorized when the request names none.
func Actor(ctx context.Context) (string, error) {
	id, ok := ctx.Value(actorKey).(string)
	if !ok || id == "" {
		return "", lterrors.NewUnauthorized("missing " + ActorHeader + " header")
	}
	return id, nil
}

// requireOwner fails with Unauthorized unless actor is owner.
func requireOwner(actor, owner, resource string) error {
	if actor != owner {
		return lterrors.NewUnauthorized("only the owner may modify this " + resource)
	}
	return nil
}
