package resilience

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/LavishGent/pixcache/internal/config"
)

// RetryPolicy retries transient store errors with exponential backoff.
//
// Retries across all callers draw from a shared token bucket. When a store
// is failing hard the bucket drains and calls fail after their first attempt
// instead of multiplying the load on the store.
type RetryPolicy struct {
	maxAttempts int
	initial     time.Duration
	max         time.Duration
	multiplier  float64
	jitter      bool
	budget      *rate.Limiter

	retries   atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	throttled atomic.Int64
}

func NewRetryPolicy(cfg config.RetryConfig) *RetryPolicy {
	rp := &RetryPolicy{
		maxAttempts: cfg.MaxAttempts,
		initial:     cfg.InitialBackoff,
		max:         cfg.MaxBackoff,
		multiplier:  cfg.Multiplier,
		jitter:      cfg.Jitter,
		budget:      rate.NewLimiter(rate.Inf, 0),
	}
	if rp.maxAttempts <= 0 {
		rp.maxAttempts = 3
	}
	if rp.initial <= 0 {
		rp.initial = 50 * time.Millisecond
	}
	if rp.max <= 0 {
		rp.max = time.Second
	}
	if rp.multiplier <= 1 {
		rp.multiplier = 2
	}
	if cfg.BudgetPerSecond > 0 {
		burst := cfg.BudgetBurst
		if burst <= 0 {
			burst = int(cfg.BudgetPerSecond) + 1
		}
		rp.budget = rate.NewLimiter(rate.Limit(cfg.BudgetPerSecond), burst)
	}
	return rp
}

// Execute calls fn until it succeeds, returns a non-retryable error, the
// attempts or the retry budget run out, or ctx is done.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func(context.Context) error) error {
	wait := rp.initial
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			rp.successes.Add(1)
			return nil
		}
		if !IsRetryable(err) || attempt >= rp.maxAttempts {
			rp.failures.Add(1)
			return err
		}
		if !rp.budget.Allow() {
			rp.throttled.Add(1)
			rp.failures.Add(1)
			return err
		}

		rp.retries.Add(1)
		if err := sleepCtx(ctx, rp.withJitter(wait)); err != nil {
			return err
		}
		wait = rp.next(wait)
	}
}

// next grows the backoff by the multiplier, capped at the maximum.
func (rp *RetryPolicy) next(d time.Duration) time.Duration {
	return min(time.Duration(float64(d)*rp.multiplier), rp.max)
}

// withJitter spreads d by up to 25% either way when jitter is on.
func (rp *RetryPolicy) withJitter(d time.Duration) time.Duration {
	if !rp.jitter {
		return d
	}
	spread := int64(d) / 4
	if spread == 0 {
		return d
	}
	return d + time.Duration(rand.Int64N(2*spread+1)-spread)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stats returns retry statistics.
func (rp *RetryPolicy) Stats() (retries, success, failure int64) {
	return rp.retries.Load(), rp.successes.Load(), rp.failures.Load()
}

// Throttled counts calls that stopped early because the retry budget was
// empty.
func (rp *RetryPolicy) Throttled() int64 { return rp.throttled.Load() }

// DisabledRetryPolicy makes a single attempt.
type DisabledRetryPolicy struct{}

func NewDisabledRetryPolicy() *DisabledRetryPolicy {
	return &DisabledRetryPolicy{}
}

func (rp *DisabledRetryPolicy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (rp *DisabledRetryPolicy) Stats() (retries, success, failure int64) {
	return 0, 0, 0
}
