package database

import (
	"context"
	"fmt"
	"time"
)

const defaultHealthTimeout = 5 * time.Second

// CheckHealth runs SELECT 1 against db, bounded by five seconds unless ctx already has a
// deadline.
func CheckHealth(ctx context.Context, db Database) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthTimeout)
		defer cancel()
	}

	var result int
	if err := db.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("health check returned unexpected result: %d", result)
	}
	return nil
}

// PingWithTimeout pings with its own timeout.
func (p *Pool) PingWithTimeout(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx)
}

// Check implements health.Checker. It fails when the query fails or every connection
// is busy.
func (p *Pool) Check(ctx context.Context) error {
	if err := CheckHealth(ctx, p); err != nil {
		return err
	}

	if stats := p.Stats(); stats != nil {
		if stats.AcquireCount() > 0 && stats.IdleConns() == 0 && stats.TotalConns() == stats.MaxConns() {
			return fmt.Errorf("connection pool exhausted: %d/%d connections in use",
				stats.TotalConns(), stats.MaxConns())
		}
	}
	return nil
}
