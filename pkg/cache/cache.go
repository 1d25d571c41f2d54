// Package cache is the key-value cache client used by the cache-aside repository.
//
// A Client never returns an error from a data operation. A disconnected client, a
// timeout, a transport failure and a corrupt payload all resolve to the operation's
// sentinel (false, 0 or -1) after being logged, so callers treat the cache as an
// optimization and never as a dependency for correctness.
//
// Three backends implement Client: RedisClient (go-redis, with a reconnect state
// machine), MemoryClient (ristretto, for development and tests) and NopClient (cache
// disabled). New selects one from configuration.
//
// Example usage:
//
//	c, err := cache.New(ctx, cfg.Cache, logger)
//	if err != nil {
//	    log.Fatal(err) // configuration errors only; an unreachable Redis is not fatal
//	}
//	defer c.Close()
//
//	c.Set(ctx, cache.Key("tree", id), tree, cache.WithTTL(30*time.Minute))
//
//	var cached store.LoveTree
//	if c.Get(ctx, cache.Key("tree", id), &cached) {
//	    return cached
//	}
package cache

import (
	"context"
	"time"
)

// NoTTL is returned by Client.TTL for a key without expiry, an absent key and a
// disconnected client alike.
const NoTTL int64 = -1

// Client is the failure-tolerant cache interface.
type Client interface {
	// Get decodes the value stored under key into dest, which must be a pointer. It
	// reports false when the key is absent or expired, the client is not connected, the
	// call fails or times out, or the payload cannot be decoded.
	Get(ctx context.Context, key string, dest any) bool

	// Set encodes value and stores it under key with the configured default TTL unless
	// WithTTL overrides it. A non-positive TTL stores nothing: any existing entry is
	// removed and Set reports false.
	Set(ctx context.Context, key string, value any, opts ...SetOption) bool

	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) bool

	// DeleteByPattern removes every key matching the glob pattern and returns how many
	// were removed. Zero means either no match or failure.
	DeleteByPattern(ctx context.Context, pattern string) int

	// TTL returns the remaining lifetime of key in whole seconds, or NoTTL.
	TTL(ctx context.Context, key string) int64

	// IsReady reports whether the client is currently connected. It is for diagnostics
	// only; no other operation depends on checking it first.
	IsReady() bool

	// Close shuts the client down. Afterwards it stays disconnected.
	Close() error
}

// SetOption customizes a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl       time.Duration
	ttlSet    bool
	namespace string
}

// WithTTL sets the entry's time to live.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// WithNamespace stores the entry under "namespace:key".
func WithNamespace(namespace string) SetOption {
	return func(o *setOptions) {
		o.namespace = namespace
	}
}

// resolveSet applies opts and returns the effective key and TTL.
func resolveSet(key string, defaultTTL time.Duration, opts []SetOption) (string, time.Duration) {
	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	ttl := defaultTTL
	if o.ttlSet {
		ttl = o.ttl
	}
	if o.namespace != "" {
		key = Key(o.namespace, key)
	}
	return key, ttl
}
