// Package retry re-runs fallible operations with a fixed delay between
// attempts.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
)

// Policy bounds how an operation is retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Log         *slog.Logger
}

// Do runs op until it succeeds or MaxAttempts attempts have failed, waiting
// Delay between failures. Attempts are strictly sequential. The error of the
// final attempt is returned unchanged; a cancelled ctx stops the wait and
// returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	log := p.Log
	if log == nil {
		log = slog.Default()
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil && ctx.Err() != nil {
			return v, backoff.Permanent(ctx.Err())
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("attempt failed, retrying",
			"op", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"retry_in", wait,
			"error", err,
		)
	}

	return backoff.RetryNotifyWithData(operation, b, notify)
}
