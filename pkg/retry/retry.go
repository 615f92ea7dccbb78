package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config bounds the retry loop around external calls. Zero values fall back
// to the defaults below.
type Config struct {
	MaxAttempts uint
	InitialWait time.Duration
	PerCallTime time.Duration
}

const (
	defaultMaxAttempts = 3
	defaultInitialWait = 500 * time.Millisecond
	defaultPerCallTime = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialWait == 0 {
		c.InitialWait = defaultInitialWait
	}
	if c.PerCallTime == 0 {
		c.PerCallTime = defaultPerCallTime
	}
	return c
}

// Permanent marks an error as not worth retrying; Do stops immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op with exponential backoff until it succeeds, returns a permanent
// error, or the attempt budget is exhausted. Each attempt gets its own
// deadline derived from PerCallTime.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = cfg.InitialWait

	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.PerCallTime)
		defer cancel()
		return op(attemptCtx)
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(cfg.MaxAttempts),
	)
}
