package retry

import (
	"time"

	"github.com/Combine-Capital/lovetree/pkg/errors"
)

// Policy decides which errors are retried.
type Policy int

const (
	// PolicyTemporary retries only errors.Temporary errors.
	PolicyTemporary Policy = iota
	// PolicyAll retries every error.
	PolicyAll
	// PolicyNone executes once.
	PolicyNone
)

// PolicyFunc reports whether err should be retried.
type PolicyFunc func(error) bool

// NotifyFunc is called after a failed attempt, before sleeping for next.
type NotifyFunc func(err error, attempt uint, next time.Duration)

// Config holds the retry configuration. The cache client's reconnect loop and the
// PostgreSQL pool's startup both run through it.
type Config struct {
	// MaxAttempts counts the initial attempt plus retries. Default 10.
	MaxAttempts uint

	// InitialDelay is the first backoff delay. Default 100ms.
	InitialDelay time.Duration

	// MaxDelay caps every backoff delay. Default 5s.
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt. Default 2.0.
	Multiplier float64

	// Jitter is the randomization factor in [0,1]. Default 0.25. Negative disables jitter.
	Jitter float64

	// MaxElapsedTime bounds the total time spent retrying. 0 means no bound.
	MaxElapsedTime time.Duration

	Policy     Policy
	PolicyFunc PolicyFunc

	// OnRetry, if set, observes each failed attempt that will be retried.
	OnRetry NotifyFunc
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 10
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	switch {
	case c.Jitter == 0:
		c.Jitter = 0.25
	case c.Jitter < 0:
		c.Jitter = 0
	}
	return c
}

func (c Config) shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if c.PolicyFunc != nil {
		return c.PolicyFunc(err)
	}

	switch c.Policy {
	case PolicyAll:
		return true
	case PolicyNone:
		return false
	default:
		return errors.IsTemporary(err)
	}
}
