package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// recordingSleep replaces real sleeping and records the requested delays.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func testPolicy(rec *recordingSleep) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     150 * time.Millisecond,
		Multiplier:   2,
		sleep:        rec.sleep,
	}
}

func TestRetryPolicy_RetriesRetryableKinds(t *testing.T) {
	rec := &recordingSleep{}
	p := testPolicy(rec)

	calls := 0
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.NewError(domain.KindUpstreamUnavailable, "", errors.New("503"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 150 * time.Millisecond}
	if len(rec.delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay %d: expected %v, got %v", i, want[i], rec.delays[i])
		}
	}
}

func TestRetryPolicy_StopsAfterMaxAttempts(t *testing.T) {
	rec := &recordingSleep{}
	p := testPolicy(rec)

	calls := 0
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return domain.RateLimited(0, errors.New("429"))
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected rate limited error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_DoesNotRetryOtherKinds(t *testing.T) {
	kinds := []domain.ErrorKind{
		domain.KindNotFound,
		domain.KindInvalidInput,
		domain.KindPermissionDenied,
		domain.KindTimeout,
		domain.KindInternal,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			rec := &recordingSleep{}
			p := testPolicy(rec)
			calls := 0
			_ = p.Do(context.Background(), "test", func(context.Context) error {
				calls++
				return domain.NewError(kind, "", nil)
			})
			if calls != 1 {
				t.Errorf("expected 1 call, got %d", calls)
			}
			if len(rec.delays) != 0 {
				t.Errorf("expected no sleeps, got %v", rec.delays)
			}
		})
	}
}

func TestRetryPolicy_HonorsRetryAfter(t *testing.T) {
	rec := &recordingSleep{}
	p := testPolicy(rec)

	calls := 0
	_ = p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls == 1 {
			return domain.RateLimited(2*time.Second, nil)
		}
		return nil
	})
	if len(rec.delays) != 1 || rec.delays[0] != 2*time.Second {
		t.Errorf("expected a single 2s delay, got %v", rec.delays)
	}
}

func TestRetryPolicy_GivesUpWhenDeadlineTooClose(t *testing.T) {
	rec := &recordingSleep{}
	p := testPolicy(rec)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := p.Do(ctx, "test", func(context.Context) error {
		calls++
		return domain.RateLimited(time.Minute, nil)
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected rate limited error, got %v", err)
	}
	if calls != 1 || len(rec.delays) != 0 {
		t.Errorf("expected one call without sleeping, got %d calls and %v", calls, rec.delays)
	}
}

func TestRetryPolicy_ExpiredContextIsTimeout(t *testing.T) {
	p := testPolicy(&recordingSleep{})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := p.Do(ctx, "test", func(context.Context) error {
		t.Error("fn must not be called with an expired context")
		return nil
	})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestRetryPolicy_CancelledContext(t *testing.T) {
	p := testPolicy(&recordingSleep{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, "test", func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewRetryPolicy_Limiter(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond, time.Millisecond, 1000, 5)
	if p.Limiter == nil {
		t.Fatal("expected a limiter")
	}
	if p.Limiter.Burst() != 5 {
		t.Errorf("expected burst 5, got %d", p.Limiter.Burst())
	}

	if q := NewRetryPolicy(2, 0, 0, 0, 0); q.Limiter != nil {
		t.Error("expected no limiter when rate is zero")
	}
}
