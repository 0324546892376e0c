// Package retry provides a small, explicit retry policy that can be composed
// around any call to an external service.
package retry

import (
	"context"
	"time"
)

// Policy bounds how often an operation is attempted.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is slept between attempts. Zero means retry immediately.
	Delay time.Duration

	// Retryable reports whether an error is worth another attempt.
	// Nil retries every error. Nothing is retried once the caller's context
	// is done, whatever the error.
	Retryable func(error) bool

	// OnRetry is called before each new attempt with the attempt number that
	// just failed and its error.
	OnRetry func(attempt int, err error)
}

// Attempts returns a policy with the given attempt budget and no delay.
func Attempts(n int) Policy {
	return Policy{MaxAttempts: n}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do runs op until it succeeds, the attempt budget is spent, the error is not
// retryable, or ctx is done. A deadline that op derived from ctx does not stop
// the retries. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == p.attempts() || ctx.Err() != nil || !p.retryable(err) {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
