// Package retry implements the bounded retry-with-backoff wrapper applied to
// every external provider call.
package retry

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/ethanbaker/voicechat/pkg/apperr"
)

// Policy controls how failed calls are retried with exponential backoff
type Policy struct {
	// Name identifies the wrapped call in logs
	Name string

	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// BaseDelay is multiplied by 2^attempt between attempts
	BaseDelay time.Duration

	// AttemptTimeout bounds a single attempt. Zero disables the per-attempt deadline.
	AttemptTimeout time.Duration

	// Retryable classifies errors. Defaults to apperr.Retryable.
	Retryable func(error) bool
}

// DefaultPolicy returns a policy with 2 retries (3 attempts total), 1s base
// delay and a 15s per-attempt timeout
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:           name,
		MaxRetries:     2,
		BaseDelay:      time.Second,
		AttemptTimeout: 15 * time.Second,
	}
}

// Delay returns the backoff before retry number attempt (0-indexed): BaseDelay * 2^attempt
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
}

// Do runs op until it succeeds, fails terminally, or the retries are exhausted.
// The last error is returned unchanged so its classification survives.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	retryable := p.Retryable
	if retryable == nil {
		retryable = apperr.Retryable
	}

	maxRetries := max(p.MaxRetries, 0)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Never start an attempt once the overall deadline is gone
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// The caller's context ended during the attempt; this is not a provider fault
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if !retryable(err) {
			return zero, err
		}

		if attempt == maxRetries {
			break
		}

		delay := p.Delay(attempt)
		log.Printf("[RETRY]: %s attempt %d/%d failed, retrying in %s: %v", p.Name, attempt+1, maxRetries+1, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// runAttempt executes a single attempt under its own deadline
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return op(attemptCtx)
}
