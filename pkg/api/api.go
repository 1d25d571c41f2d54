// Package api exposes store.Store over HTTP. Handlers depend only on the store.Store
// interface, so the same router serves the plain store and the cache-aside repository.
//
// The acting user is taken from the X-User-ID header; authenticating that header is left
// to the gateway in front of the service.
//
// Example usage:
//
//	repo := repository.NewCached(postgres.New(pool), cacheClient)
//	router := api.NewRouter(repo, api.WithLogger(logger), api.WithHealth(h))
//	svc := service.NewHTTPService("api", cfg.Server, router)
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	lterrors "github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/health"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/metrics"
	"github.com/Combine-Capital/lovetree/pkg/store"
	"github.com/Combine-Capital/lovetree/pkg/tracing"
)

// Handler serves the lovetree API over a store.
type Handler struct {
	store          store.Store
	logger         *logging.Logger
	health         *health.Health
	serviceName    string
	metricsEnabled bool
	namespace      string
}

// Option configures the router.
type Option func(*Handler)

func WithLogger(logger *logging.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithHealth mounts /health/live and /health/ready.
func WithHealth(hc *health.Health) Option {
	return func(h *Handler) { h.health = hc }
}

// WithServiceName names the tracer of server spans.
func WithServiceName(name string) Option {
	return func(h *Handler) { h.serviceName = name }
}

// WithMetrics records request metrics under namespace.
func WithMetrics(namespace string) Option {
	return func(h *Handler) {
		h.metricsEnabled = true
		h.namespace = namespace
	}
}

// NewRouter returns the API router over st.
func NewRouter(st store.Store, opts ...Option) http.Handler {
	h := &Handler{
		store:       st,
		logger:      logging.Nop(),
		serviceName: "lovetree",
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithComponent("api")

	r := chi.NewRouter()
	r.Use(lterrors.RecoveryMiddleware(nil))
	r.Use(tracing.HTTPMiddleware(h.serviceName, routePattern))
	r.Use(logging.HTTPMiddleware(h.logger))
	if h.metricsEnabled {
		r.Use(metrics.HTTPMiddleware(h.namespace))
	}
	r.Use(actorMiddleware)

	if h.health != nil {
		r.Get("/health/live", h.health.LivenessHandler())
		r.Get("/health/ready", h.health.ReadinessHandler())
	}

	r.Get("/stages", h.getStages)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.createUser)
		r.Get("/by-username/{username}", h.getUserByUsername)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", h.getUser)
			r.Patch("/", h.updateUser)
			r.Put("/", h.upsertUser)
			r.Get("/trees", h.getUserTrees)
			r.Get("/followers", h.getFollowers)
			r.Get("/following", h.getFollowing)
			r.Get("/follow", h.isFollowing)
			r.Post("/follow", h.toggleFollow)
		})
	})

	r.Route("/trees", func(r chi.Router) {
		r.Post("/", h.createTree)
		r.Get("/popular", h.getPopularTrees)
		r.Get("/search", h.searchTrees)
		r.Route("/{treeID}", func(r chi.Router) {
			r.Get("/", h.getTree)
			r.Patch("/", h.updateTree)
			r.Delete("/", h.deleteTree)
			r.Get("/items", h.getItems)
			r.Post("/items", h.createItem)
			r.Get("/comments", h.getComments)
			r.Post("/comments", h.createComment)
			r.Delete("/comments/{commentID}", h.deleteComment)
			r.Get("/like", h.hasLiked)
			r.Post("/like", h.toggleLike)
			r.Get("/recommendations", h.getRecommendations)
			r.Post("/recommendations", h.createRecommendation)
		})
	})

	r.Route("/items/{itemID}", func(r chi.Router) {
		r.Get("/", h.getItem)
		r.Patch("/", h.updateItem)
		r.Delete("/", h.deleteItem)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.getNotifications)
		r.Get("/unread-count", h.getUnreadCount)
		r.Post("/{notificationID}/read", h.markNotificationRead)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		lterrors.WriteHTTPError(w, lterrors.NewNotFound("route", r.URL.Path))
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
