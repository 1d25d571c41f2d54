package cache

import (
	"context"
	"time"

	"github.com/Combine-Capital/lovetree/pkg/errors"
)

// Check reports whether c can serve requests. Clients with their own Check method
// (RedisClient, MemoryClient) use it; others are judged by IsReady.
func Check(ctx context.Context, c Client) error {
	if checker, ok := c.(interface{ Check(context.Context) error }); ok {
		return checker.Check(ctx)
	}
	if !c.IsReady() {
		return errors.NewTemporary("cache is not ready", nil)
	}
	return nil
}

// CheckWithTimeout is Check bounded by timeout.
func CheckWithTimeout(c Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Check(ctx, c)
}
