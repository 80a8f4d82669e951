// Package retry runs an operation a bounded number of times with a fixed
// pause between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures Do.
type Policy struct {
	// Attempts is the total number of calls, including the first. Values
	// below one are treated as one.
	Attempts int
	// Delay is the pause between attempts.
	Delay time.Duration
	// Retryable decides whether a failure may be retried. Nil retries all.
	Retryable func(error) bool
	// OnRetry observes each failed attempt that will be retried.
	OnRetry func(attempt int, err error, next time.Duration)
}

// Default mirrors the generation policy: three attempts, one second apart.
func Default() Policy {
	return Policy{Attempts: 3, Delay: time.Second}
}

// Do calls op until it succeeds, the attempts are exhausted, a failure is
// not retryable, or ctx ends. It returns the last error from op; when ctx
// ends first that error is joined with the context error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	var lastErr error
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err != nil {
			lastErr = err
			if p.Retryable != nil && !p.Retryable(err) {
				return res, backoff.Permanent(err)
			}
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(attempt, err, next)
			}
		}),
	)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && lastErr != nil && !errors.Is(lastErr, ctxErr) {
		return res, errors.Join(lastErr, ctxErr)
	}
	if lastErr != nil {
		return res, lastErr
	}
	return res, err
}
