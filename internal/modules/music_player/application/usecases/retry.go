package usecases

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// RetryPolicy retries backend calls that fail with RateLimited or UpstreamUnavailable
// using bounded exponential backoff. Every attempt first takes a token from Limiter.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool

	// Limiter throttles all attempts that share this policy. Nil disables throttling.
	Limiter *rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       true,
	}
}

// NewRetryPolicy creates a policy that throttles attempts to rps requests per second.
func NewRetryPolicy(maxAttempts int, initialDelay, maxDelay time.Duration, rps float64, burst int) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxAttempts = maxAttempts
	p.InitialDelay = initialDelay
	p.MaxDelay = maxDelay
	if rps > 0 {
		p.Limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
	}
	return p
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out of attempts
// or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := retryValue(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func retryValue[T any](
	ctx context.Context,
	p RetryPolicy,
	op string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	attempts := max(1, p.MaxAttempts)
	delay := p.InitialDelay
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, contextError(err, lastErr)
		}

		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				// Wait fails early when the deadline cannot be met.
				if ctxErr := ctx.Err(); ctxErr != nil {
					return zero, contextError(ctxErr, lastErr)
				}
				return zero, contextError(context.DeadlineExceeded, lastErr)
			}
		}

		v, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Debug("backend call succeeded after retry", "op", op, "attempt", attempt)
			}
			return v, nil
		}
		lastErr = err

		kind := domain.KindOf(err)
		if !kind.Retryable() || attempt == attempts {
			return zero, err
		}

		wait := delay
		if p.Jitter && wait > 0 {
			wait += rand.N(wait/4 + 1)
		}
		if hint := domain.RetryAfterOf(err); hint > wait {
			wait = hint
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return zero, err
		}

		slog.Warn("backend call failed, retrying",
			"op", op, "attempt", attempt, "kind", kind, "delay", wait, "error", err)

		if err := sleep(ctx, wait); err != nil {
			return zero, contextError(err, lastErr)
		}

		delay = time.Duration(float64(delay) * max(1, p.Multiplier))
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return zero, lastErr
}

// contextError converts a context error into a classified error.
// Cancellation stays unclassified so callers can tell it apart from a timeout.
func contextError(ctxErr, lastErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, "The source took too long to respond.", errors.Join(ctxErr, lastErr))
	}
	return ctxErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
