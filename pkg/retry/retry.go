// Package retry runs operations with capped exponential backoff on top of
// github.com/cenkalti/backoff/v5. Which errors are retried is decided by a Policy built
// on the lovetree error categories.
//
// Example usage:
//
//	err := retry.Do(ctx, retry.Config{
//		MaxAttempts:  5,
//		InitialDelay: 100 * time.Millisecond,
//		MaxDelay:     3 * time.Second,
//		Policy:       retry.PolicyAll,
//	}, func() error {
//		return client.Ping(ctx).Err()
//	})
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Do calls fn until it succeeds, the policy rejects its error, attempts run out or ctx
// ends. It returns the last error.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithData(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithData is Do for functions that also return a value.
func DoWithData[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	operation := func() (T, error) {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !cfg.shouldRetry(err) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return result, err
	}

	return backoff.Retry(ctx, operation, options(cfg)...)
}

// Backoff returns the delay schedule cfg describes, for callers that drive their own loop.
func Backoff(cfg Config) backoff.BackOff {
	cfg = cfg.withDefaults()
	return newExponential(cfg)
}

func newExponential(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.Jitter
	return b
}

func options(cfg Config) []backoff.RetryOption {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(newExponential(cfg)),
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(cfg.MaxAttempts))
	}
	if cfg.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}
	if cfg.OnRetry != nil {
		var attempt uint
		notify := cfg.OnRetry
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			attempt++
			notify(err, attempt, next)
		}))
	}
	return opts
}
