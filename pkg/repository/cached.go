// Package repository provides Cached, the cache-aside decorator over store.Store.
//
// Reads check the cache first and fall back to the wrapped store on a miss, writing the
// result back with the TTL tier of the read. Writes go to the store first; only when the
// store succeeds are the affected keys invalidated, most specific first, then lists, then
// cross-entity aggregates. A store error is returned unchanged and leaves the cache as
// it was. Cache failures never reach the caller, so Cached is a drop-in replacement for
// the store it wraps.
//
// Example usage:
//
//	client, _ := cache.New(ctx, cfg.Cache, logger)
//	repo := repository.NewCached(postgres.New(pool), client,
//	    repository.WithLogger(logger))
//
//	trees, err := repo.GetUserLoveTrees(ctx, userID) // cached for 30m
package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Combine-Capital/lovetree/pkg/cache"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/metrics"
	"github.com/Combine-Capital/lovetree/pkg/store"
	"github.com/Combine-Capital/lovetree/pkg/tracing"
)

const tracerName = "github.com/Combine-Capital/lovetree/pkg/repository"

// Cached is a store.Store that caches reads of the wrapped store.
type Cached struct {
	inner  store.Store
	cache  cache.Client
	logger *logging.Logger
	tracer trace.Tracer
	ttls   [tierCount]time.Duration
	loads  singleflight.Group
}

var _ store.Store = (*Cached)(nil)

// Option configures a Cached repository.
type Option func(*Cached)

// WithLogger sets the logger for invalidation diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Cached) { c.logger = logger.WithComponent("repository") }
}

// WithTracerProvider sets the provider for repository spans. The default is the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Cached) { c.tracer = tp.Tracer(tracerName) }
}

// WithTierTTL overrides the TTL of one tier.
func WithTierTTL(tier Tier, ttl time.Duration) Option {
	return func(c *Cached) {
		if tier >= 0 && tier < tierCount && ttl > 0 {
			c.ttls[tier] = ttl
		}
	}
}

// NewCached wraps inner with client. A NopClient yields a pass-through repository.
func NewCached(inner store.Store, client cache.Client, opts ...Option) *Cached {
	c := &Cached{
		inner:  inner,
		cache:  client,
		logger: logging.Nop(),
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		ttls:   defaultTTLs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the effective TTL of tier.
func (c *Cached) TTL(tier Tier) time.Duration {
	if tier < 0 || tier >= tierCount {
		return c.ttls[TierMedium]
	}
	return c.ttls[tier]
}

// read runs the cache-aside read for one repository method. Concurrent misses on the
// same key share one store call.
func read[T any](ctx context.Context, c *Cached, method, key string, tier Tier, load func(context.Context) (T, error)) (T, error) {
	ctx, span := c.tracer.Start(ctx, "repository."+method, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	value, hit, err := cache.Fetch(ctx, c.cache, key, c.TTL(tier), func(ctx context.Context) (T, error) {
		return cache.Share(ctx, &c.loads, key, load)
	})

	span.SetAttributes(tracing.CacheAttributes(method, key, hit, tier.String())...)
	metrics.RecordRepositoryLookup(method, hit)
	if err != nil {
		tracing.SetSpanError(ctx, err)
	}
	return value, err
}

// write runs mutate against the store and, only if it succeeds, invalidates the targets
// computed from its result.
func write[T any](ctx context.Context, c *Cached, method string, mutate func(context.Context) (T, error), targets func(T) []target) (T, error) {
	ctx, span := c.tracer.Start(ctx, "repository."+method, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	value, err := mutate(ctx)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return value, err
	}
	c.invalidate(ctx, method, targets(value)...)
	return value, nil
}

// Users

// GetUser reads user:{id} in the long tier.
func (c *Cached) GetUser(ctx context.Context, id string) (store.User, error) {
	return read(ctx, c, "GetUser", UserKey(id), TierLong, func(ctx context.Context) (store.User, error) {
		return c.inner.GetUser(ctx, id)
	})
}

// GetUserByUsername reads username:{name} in the long tier. Lookups fold case.
func (c *Cached) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	return read(ctx, c, "GetUserByUsername", UsernameKey(username), TierLong, func(ctx context.Context) (store.User, error) {
		return c.inner.GetUserByUsername(ctx, username)
	})
}

// CreateUser drops any username:{name} entry cached before the user existed.
func (c *Cached) CreateUser(ctx context.Context, in store.NewUser) (store.User, error) {
	return write(ctx, c, "CreateUser", func(ctx context.Context) (store.User, error) {
		return c.inner.CreateUser(ctx, in)
	}, func(u store.User) []target {
		return []target{delKey(UsernameKey(u.Username))}
	})
}

// UpdateUser drops both keys holding the profile.
func (c *Cached) UpdateUser(ctx context.Context, id string, patch store.UserPatch) (store.User, error) {
	return write(ctx, c, "UpdateUser", func(ctx context.Context) (store.User, error) {
		return c.inner.UpdateUser(ctx, id, patch)
	}, func(u store.User) []target {
		return []target{delKey(UserKey(u.ID)), delKey(UsernameKey(u.Username))}
	})
}

// UpsertUser writes the fresh user through to user:{id} instead of deleting it. When the
// previous profile had a different username, that stale username entry is dropped too.
func (c *Cached) UpsertUser(ctx context.Context, in store.UserUpsert) (store.User, error) {
	var previous store.User
	found := c.cache.Get(ctx, UserKey(in.ID), &previous)
	if !found {
		p, err := c.inner.GetUser(ctx, in.ID)
		previous, found = p, err == nil
	}
	renamed := found && !equalFold(previous.Username, in.Username)

	return write(ctx, c, "UpsertUser", func(ctx context.Context) (store.User, error) {
		return c.inner.UpsertUser(ctx, in)
	}, func(u store.User) []target {
		c.cache.Set(context.WithoutCancel(ctx), UserKey(u.ID), u, cache.WithTTL(c.TTL(TierLong)))
		targets := []target{delKey(UsernameKey(u.Username))}
		if renamed {
			targets = append(targets, delKey(UsernameKey(previous.Username)))
		}
		return targets
	})
}

// Love trees

// GetLoveTree reads tree:{id} in the medium tier.
func (c *Cached) GetLoveTree(ctx context.Context, id string) (store.LoveTree, error) {
	return read(ctx, c, "GetLoveTree", TreeKey(id), TierMedium, func(ctx context.Context) (store.LoveTree, error) {
		return c.inner.GetLoveTree(ctx, id)
	})
}

// GetUserLoveTrees reads user-trees:{userID} in the medium tier.
func (c *Cached) GetUserLoveTrees(ctx context.Context, userID string) ([]store.LoveTree, error) {
	return read(ctx, c, "GetUserLoveTrees", UserTreesKey(userID), TierMedium, func(ctx context.Context) ([]store.LoveTree, error) {
		return c.inner.GetUserLoveTrees(ctx, userID)
	})
}

// GetPopularLoveTrees reads popular-trees:{limit} in the short tier.
func (c *Cached) GetPopularLoveTrees(ctx context.Context, limit int) ([]store.LoveTree, error) {
	return read(ctx, c, "GetPopularLoveTrees", PopularTreesKey(limit), TierShort, func(ctx context.Context) ([]store.LoveTree, error) {
		return c.inner.GetPopularLoveTrees(ctx, limit)
	})
}

// SearchLoveTrees caches each normalized query and limit in the short tier.
func (c *Cached) SearchLoveTrees(ctx context.Context, query string, limit int) ([]store.LoveTree, error) {
	return read(ctx, c, "SearchLoveTrees", SearchKey(query, limit), TierShort, func(ctx context.Context) ([]store.LoveTree, error) {
		return c.inner.SearchLoveTrees(ctx, query, limit)
	})
}

// CreateLoveTree drops the owner's tree list and every popular list.
func (c *Cached) CreateLoveTree(ctx context.Context, in store.NewLoveTree) (store.LoveTree, error) {
	return write(ctx, c, "CreateLoveTree", func(ctx context.Context) (store.LoveTree, error) {
		return c.inner.CreateLoveTree(ctx, in)
	}, func(t store.LoveTree) []target {
		return []target{
			delKey(UserTreesKey(t.UserID)),
			delPattern(PopularTreesPattern()),
		}
	})
}

// UpdateLoveTree drops the tree, the owner's tree list and every popular list.
func (c *Cached) UpdateLoveTree(ctx context.Context, id string, patch store.LoveTreePatch) (store.LoveTree, error) {
	return write(ctx, c, "UpdateLoveTree", func(ctx context.Context) (store.LoveTree, error) {
		return c.inner.UpdateLoveTree(ctx, id, patch)
	}, func(t store.LoveTree) []target {
		return []target{
			delKey(TreeKey(t.ID)),
			delKey(UserTreesKey(t.UserID)),
			delPattern(PopularTreesPattern()),
		}
	})
}

// DeleteLoveTree also drops the item:{id} entry of every item the store deletes with the
// tree. The item IDs come from the cached item list, or from the store when that misses.
func (c *Cached) DeleteLoveTree(ctx context.Context, id string) (store.LoveTree, error) {
	var items []store.LoveTreeItem
	if !c.cache.Get(ctx, ItemsKey(id), &items) {
		items, _ = c.inner.GetLoveTreeItems(ctx, id)
	}

	return write(ctx, c, "DeleteLoveTree", func(ctx context.Context) (store.LoveTree, error) {
		return c.inner.DeleteLoveTree(ctx, id)
	}, func(t store.LoveTree) []target {
		targets := []target{delKey(TreeKey(t.ID))}
		for _, it := range items {
			targets = append(targets, delKey(ItemKey(it.ID)))
		}
		return append(targets,
			delKey(ItemsKey(t.ID)),
			delKey(CommentsKey(t.ID)),
			delKey(RecommendationsKey(t.ID)),
			delPattern(LikePattern(t.ID)),
			delKey(UserTreesKey(t.UserID)),
			delPattern(PopularTreesPattern()),
		)
	})
}

// Items

// GetLoveTreeItem reads item:{id} in the medium tier.
func (c *Cached) GetLoveTreeItem(ctx context.Context, id string) (store.LoveTreeItem, error) {
	return read(ctx, c, "GetLoveTreeItem", ItemKey(id), TierMedium, func(ctx context.Context) (store.LoveTreeItem, error) {
		return c.inner.GetLoveTreeItem(ctx, id)
	})
}

// GetLoveTreeItems reads items:{treeID} in the medium tier.
func (c *Cached) GetLoveTreeItems(ctx context.Context, treeID string) ([]store.LoveTreeItem, error) {
	return read(ctx, c, "GetLoveTreeItems", ItemsKey(treeID), TierMedium, func(ctx context.Context) ([]store.LoveTreeItem, error) {
		return c.inner.GetLoveTreeItems(ctx, treeID)
	})
}

// CreateLoveTreeItem drops the item list and every cached copy of the tree's item count.
func (c *Cached) CreateLoveTreeItem(ctx context.Context, in store.NewLoveTreeItem) (store.LoveTreeItem, error) {
	return write(ctx, c, "CreateLoveTreeItem", func(ctx context.Context) (store.LoveTreeItem, error) {
		return c.inner.CreateLoveTreeItem(ctx, in)
	}, func(it store.LoveTreeItem) []target {
		return append([]target{delKey(ItemsKey(it.TreeID))}, c.treeTargets(ctx, it.TreeID)...)
	})
}

// UpdateLoveTreeItem drops the item and its list. The tree's counters are unchanged.
func (c *Cached) UpdateLoveTreeItem(ctx context.Context, id string, patch store.LoveTreeItemPatch) (store.LoveTreeItem, error) {
	return write(ctx, c, "UpdateLoveTreeItem", func(ctx context.Context) (store.LoveTreeItem, error) {
		return c.inner.UpdateLoveTreeItem(ctx, id, patch)
	}, func(it store.LoveTreeItem) []target {
		return []target{delKey(ItemKey(it.ID)), delKey(ItemsKey(it.TreeID))}
	})
}

// DeleteLoveTreeItem drops the item, its list and every cached copy of the tree.
func (c *Cached) DeleteLoveTreeItem(ctx context.Context, id string) (store.LoveTreeItem, error) {
	return write(ctx, c, "DeleteLoveTreeItem", func(ctx context.Context) (store.LoveTreeItem, error) {
		return c.inner.DeleteLoveTreeItem(ctx, id)
	}, func(it store.LoveTreeItem) []target {
		targets := []target{delKey(ItemKey(it.ID)), delKey(ItemsKey(it.TreeID))}
		return append(targets, c.treeTargets(ctx, it.TreeID)...)
	})
}

// GetStages is cached in the very long tier and never invalidated.
func (c *Cached) GetStages(ctx context.Context) ([]store.Stage, error) {
	return read(ctx, c, "GetStages", StagesKey(), TierVeryLong, c.inner.GetStages)
}

// Comments

// GetComments reads comments:{treeID} in the short tier.
func (c *Cached) GetComments(ctx context.Context, treeID string) ([]store.Comment, error) {
	return read(ctx, c, "GetComments", CommentsKey(treeID), TierShort, func(ctx context.Context) ([]store.Comment, error) {
		return c.inner.GetComments(ctx, treeID)
	})
}

// CreateComment drops the comment list and every cached copy of the tree.
func (c *Cached) CreateComment(ctx context.Context, in store.NewComment) (store.Comment, error) {
	return write(ctx, c, "CreateComment", func(ctx context.Context) (store.Comment, error) {
		return c.inner.CreateComment(ctx, in)
	}, c.commentTargets(ctx))
}

// DeleteComment invalidates like CreateComment.
func (c *Cached) DeleteComment(ctx context.Context, id string) (store.Comment, error) {
	return write(ctx, c, "DeleteComment", func(ctx context.Context) (store.Comment, error) {
		return c.inner.DeleteComment(ctx, id)
	}, c.commentTargets(ctx))
}

func (c *Cached) commentTargets(ctx context.Context) func(store.Comment) []target {
	return func(cm store.Comment) []target {
		return append([]target{delKey(CommentsKey(cm.TreeID))}, c.treeTargets(ctx, cm.TreeID)...)
	}
}

// Likes

// ToggleLike drops the like flag and every cached copy of the tree's like count.
func (c *Cached) ToggleLike(ctx context.Context, userID, treeID string) (bool, error) {
	return write(ctx, c, "ToggleLike", func(ctx context.Context) (bool, error) {
		return c.inner.ToggleLike(ctx, userID, treeID)
	}, func(bool) []target {
		return append([]target{delKey(LikeKey(treeID, userID))}, c.treeTargets(ctx, treeID)...)
	})
}

// HasLiked reads like:{treeID}:{userID} in the medium tier.
func (c *Cached) HasLiked(ctx context.Context, userID, treeID string) (bool, error) {
	return read(ctx, c, "HasLiked", LikeKey(treeID, userID), TierMedium, func(ctx context.Context) (bool, error) {
		return c.inner.HasLiked(ctx, userID, treeID)
	})
}

// Recommendations

// GetRecommendations reads recommendations:{treeID} in the medium tier.
func (c *Cached) GetRecommendations(ctx context.Context, treeID string) ([]store.Recommendation, error) {
	return read(ctx, c, "GetRecommendations", RecommendationsKey(treeID), TierMedium, func(ctx context.Context) ([]store.Recommendation, error) {
		return c.inner.GetRecommendations(ctx, treeID)
	})
}

// CreateRecommendation drops the tree's recommendation list.
func (c *Cached) CreateRecommendation(ctx context.Context, in store.NewRecommendation) (store.Recommendation, error) {
	return write(ctx, c, "CreateRecommendation", func(ctx context.Context) (store.Recommendation, error) {
		return c.inner.CreateRecommendation(ctx, in)
	}, func(r store.Recommendation) []target {
		return []target{delKey(RecommendationsKey(r.TreeID))}
	})
}

// Notifications

// GetNotifications caches each page in the short tier.
func (c *Cached) GetNotifications(ctx context.Context, userID string, page store.Page) ([]store.Notification, error) {
	return read(ctx, c, "GetNotifications", NotificationsKey(userID, page), TierShort, func(ctx context.Context) ([]store.Notification, error) {
		return c.inner.GetNotifications(ctx, userID, page)
	})
}

// GetUnreadNotificationCount reads notifications-unread:{userID} in the short tier.
func (c *Cached) GetUnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	return read(ctx, c, "GetUnreadNotificationCount", UnreadCountKey(userID), TierShort, func(ctx context.Context) (int, error) {
		return c.inner.GetUnreadNotificationCount(ctx, userID)
	})
}

// CreateNotification drops every cached page and the unread count of the recipient.
func (c *Cached) CreateNotification(ctx context.Context, in store.NewNotification) (store.Notification, error) {
	return write(ctx, c, "CreateNotification", func(ctx context.Context) (store.Notification, error) {
		return c.inner.CreateNotification(ctx, in)
	}, notificationTargets)
}

// MarkNotificationRead invalidates like CreateNotification.
func (c *Cached) MarkNotificationRead(ctx context.Context, userID, id string) (store.Notification, error) {
	return write(ctx, c, "MarkNotificationRead", func(ctx context.Context) (store.Notification, error) {
		return c.inner.MarkNotificationRead(ctx, userID, id)
	}, notificationTargets)
}

func notificationTargets(n store.Notification) []target {
	return []target{delPattern(NotificationsPattern(n.UserID)), delKey(UnreadCountKey(n.UserID))}
}

// Follows

// ToggleFollow drops the follow flag, both users' follow lists and both profiles under
// their id and username keys, all of which carry the follow counts.
func (c *Cached) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	return write(ctx, c, "ToggleFollow", func(ctx context.Context) (bool, error) {
		return c.inner.ToggleFollow(ctx, followerID, followingID)
	}, func(bool) []target {
		targets := []target{
			delKey(FollowKey(followerID, followingID)),
			delKey(FollowersKey(followingID)),
			delKey(FollowingKey(followerID)),
			delKey(FollowersKey(followerID)),
			delKey(FollowingKey(followingID)),
		}
		for _, id := range []string{followerID, followingID} {
			targets = append(targets, c.profileTargets(ctx, id)...)
		}
		return targets
	})
}

// IsFollowing reads follow:{followerID}:{followingID} in the medium tier.
func (c *Cached) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return read(ctx, c, "IsFollowing", FollowKey(followerID, followingID), TierMedium, func(ctx context.Context) (bool, error) {
		return c.inner.IsFollowing(ctx, followerID, followingID)
	})
}

// GetFollowers reads followers:{userID} in the medium tier.
func (c *Cached) GetFollowers(ctx context.Context, userID string) ([]store.User, error) {
	return read(ctx, c, "GetFollowers", FollowersKey(userID), TierMedium, func(ctx context.Context) ([]store.User, error) {
		return c.inner.GetFollowers(ctx, userID)
	})
}

// GetFollowing reads following:{userID} in the medium tier.
func (c *Cached) GetFollowing(ctx context.Context, userID string) ([]store.User, error) {
	return read(ctx, c, "GetFollowing", FollowingKey(userID), TierMedium, func(ctx context.Context) ([]store.User, error) {
		return c.inner.GetFollowing(ctx, userID)
	})
}

// profileTargets drops user:{id} and, when the store still knows the user, the
// username:{name} entry holding the same profile.
func (c *Cached) profileTargets(ctx context.Context, id string) []target {
	targets := []target{delKey(UserKey(id))}
	if u, err := c.inner.GetUser(context.WithoutCancel(ctx), id); err == nil {
		targets = append(targets, delKey(UsernameKey(u.Username)))
	}
	return targets
}

// treeTargets drops tree:{id} and the lists embedding the same tree with its counters:
// the owner's tree list and every popular list. The owner comes from the cached tree,
// falling back to the store.
func (c *Cached) treeTargets(ctx context.Context, treeID string) []target {
	targets := []target{delKey(TreeKey(treeID))}

	ctx = context.WithoutCancel(ctx)
	var tree store.LoveTree
	if !c.cache.Get(ctx, TreeKey(treeID), &tree) {
		t, err := c.inner.GetLoveTree(ctx, treeID)
		if err != nil {
			return append(targets, delPattern(PopularTreesPattern()))
		}
		tree = t
	}
	return append(targets, delKey(UserTreesKey(tree.UserID)), delPattern(PopularTreesPattern()))
}

func equalFold(a, b string) bool {
	return UsernameKey(a) == UsernameKey(b)
}
