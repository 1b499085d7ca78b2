package resilience

import (
	"context"

	"github.com/LavishGent/pixcache/internal/config"
)

// Runner runs store calls under a resilience policy.
type Runner interface {
	// Execute runs an idempotent read: bulkhead, then retry, then circuit breaker.
	Execute(ctx context.Context, fn func(context.Context) error) error
	// ExecuteKeyed runs an idempotent call already serialized by a per-key
	// lock, such as a remove. Retry and circuit breaker apply; the bulkhead
	// does not, so calls on distinct keys never wait for each other.
	ExecuteKeyed(ctx context.Context, fn func(context.Context) error) error
	// ExecuteOnce runs a keyed call that must not be repeated, such as a
	// write consuming a one-shot stream. Only the circuit breaker applies.
	ExecuteOnce(ctx context.Context, fn func(context.Context) error) error
	IsCircuitOpen() bool
	CircuitState() State
	SetOnCircuitStateChange(fn func(from, to State))
	Stats() PolicyStats
}

// PolicyStats summarizes a policy for health reporting.
type PolicyStats struct {
	Circuit          State
	BulkheadActive   int
	BulkheadQueued   int
	BulkheadRejected int64
	Retries          int64
}

type circuitExecutor interface {
	Execute(fn func() error) error
	State() State
	IsOpen() bool
	SetOnStateChange(fn func(from, to State))
}

type retryExecutor interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
	Stats() (retries, success, failure int64)
}

type bulkheadExecutor interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
	Stats() BulkheadStats
}

// Policy combines circuit breaker, retry, and bulkhead.
type Policy struct {
	circuitBreaker circuitExecutor
	retry          retryExecutor
	bulkhead       bulkheadExecutor
}

// NewPolicy creates the policy guarding the named store.
func NewPolicy(name string, cfg *config.Config) *Policy {
	p := &Policy{}

	if cfg.CircuitBreaker.Enabled {
		p.circuitBreaker = NewCircuitBreaker(name, cfg.CircuitBreaker)
	} else {
		p.circuitBreaker = NewDisabledCircuitBreaker()
	}

	if cfg.Retry.Enabled {
		p.retry = NewRetryPolicy(cfg.Retry)
	} else {
		p.retry = NewDisabledRetryPolicy()
	}

	if cfg.Bulkhead.Enabled {
		p.bulkhead = NewBulkhead(cfg.Bulkhead)
	} else {
		p.bulkhead = NewDisabledBulkhead()
	}

	return p
}

// Execute runs fn through bulkhead, retry, and circuit breaker in that order.
// The breaker is innermost so every attempt counts toward its state.
func (p *Policy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return p.bulkhead.Execute(ctx, func(ctx context.Context) error {
		return p.retry.Execute(ctx, func(ctx context.Context) error {
			return p.circuitBreaker.Execute(func() error { return fn(ctx) })
		})
	})
}

func (p *Policy) ExecuteKeyed(ctx context.Context, fn func(context.Context) error) error {
	return p.retry.Execute(ctx, func(ctx context.Context) error {
		return p.circuitBreaker.Execute(func() error { return fn(ctx) })
	})
}

func (p *Policy) ExecuteOnce(ctx context.Context, fn func(context.Context) error) error {
	return p.circuitBreaker.Execute(func() error { return fn(ctx) })
}

func (p *Policy) IsCircuitOpen() bool { return p.circuitBreaker.IsOpen() }
func (p *Policy) CircuitState() State { return p.circuitBreaker.State() }

func (p *Policy) SetOnCircuitStateChange(fn func(from, to State)) {
	p.circuitBreaker.SetOnStateChange(fn)
}

func (p *Policy) Stats() PolicyStats {
	bs := p.bulkhead.Stats()
	retries, _, _ := p.retry.Stats()
	return PolicyStats{
		Circuit:          p.circuitBreaker.State(),
		BulkheadActive:   bs.Active,
		BulkheadQueued:   bs.Queued,
		BulkheadRejected: bs.TotalRejected,
		Retries:          retries,
	}
}

// DisabledPolicy runs calls directly.
type DisabledPolicy struct{}

func NewDisabledPolicy() *DisabledPolicy {
	return &DisabledPolicy{}
}

func (p *DisabledPolicy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (p *DisabledPolicy) ExecuteKeyed(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (p *DisabledPolicy) ExecuteOnce(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (p *DisabledPolicy) IsCircuitOpen() bool                             { return false }
func (p *DisabledPolicy) CircuitState() State                             { return StateClosed }
func (p *DisabledPolicy) SetOnCircuitStateChange(fn func(from, to State)) {}
func (p *DisabledPolicy) Stats() PolicyStats                              { return PolicyStats{} }

// Do runs an idempotent call returning a value through r.
func Do[T any](ctx context.Context, r Runner, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := r.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
