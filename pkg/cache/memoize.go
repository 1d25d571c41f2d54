package cache

import (
	"context"
	"reflect"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Combine-Capital/lovetree/pkg/errors"
)

// Fetch is the cache-aside read. On a hit it returns the cached value and true without
// calling load. On a miss it calls load; a non-nil result is written back with ttl and
// returned. Errors from load are returned unchanged and nothing is cached. A failed
// write-back is ignored.
func Fetch[T any](ctx context.Context, c Client, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	if !isNil(value) {
		// The caller may give up on ctx once it has its value; the write-back still lands.
		c.Set(context.WithoutCancel(ctx), key, value, WithTTL(ttl))
	}
	return value, false, nil
}

// GetOrLoad is Fetch without the hit flag.
func GetOrLoad[T any](ctx context.Context, c Client, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	value, _, err := Fetch(ctx, c, key, ttl, load)
	return value, err
}

// Memoize wraps fn so results are cached under keyFn(arg) for ttl. Concurrent misses for
// the same key share a single call to fn.
//
//	getTree := cache.Memoize(c, func(id string) string { return cache.Key("tree", id) },
//		30*time.Minute, st.GetLoveTree)
func Memoize[A, T any](c Client, keyFn func(A) string, ttl time.Duration, fn func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	var group singleflight.Group

	return func(ctx context.Context, arg A) (T, error) {
		key := keyFn(arg)

		var cached T
		if c.Get(ctx, key, &cached) {
			return cached, nil
		}

		return Share(ctx, &group, key, func(ctx context.Context) (T, error) {
			value, err := fn(ctx, arg)
			if err != nil {
				var zero T
				return zero, err
			}
			if !isNil(value) {
				c.Set(context.WithoutCancel(ctx), key, value, WithTTL(ttl))
			}
			return value, nil
		})
	}
}

// Share runs load once for all concurrent callers of key on group. Each caller waits
// only as long as its own ctx allows. The shared call runs under the ctx of the caller
// that started it; when that caller's cancellation fails the call while ctx is still
// live, load runs again for this caller alone.
func Share[T any](ctx context.Context, group *singleflight.Group, key string, load func(context.Context) (T, error)) (T, error) {
	ch := group.DoChan(key, func() (any, error) {
		return load(ctx)
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil && isContextError(res.Err) && ctx.Err() == nil {
			return load(ctx)
		}
		value, _ := res.Val.(T)
		return value, res.Err
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// isNil reports whether v is nil or a nil pointer, map, slice, interface, func or chan.
// Empty but non-nil collections are cacheable values.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
