package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/LavishGent/pixcache/internal/config"
)

// Bulkhead caps concurrent store calls at maxConcurrent. Up to maxQueue
// callers wait at most acquireTimeout for a slot; the rest are rejected.
type Bulkhead struct {
	maxConcurrent  int
	maxQueue       int
	acquireTimeout time.Duration
	slots          *semaphore.Weighted

	activeCount   atomic.Int32
	queuedCount   atomic.Int32
	rejectedCount atomic.Int64
	totalExecuted atomic.Int64
}

func NewBulkhead(cfg config.BulkheadConfig) *Bulkhead {
	b := &Bulkhead{
		maxConcurrent:  cfg.MaxConcurrent,
		maxQueue:       cfg.MaxQueue,
		acquireTimeout: cfg.AcquireTimeout,
	}

	if b.maxConcurrent <= 0 {
		b.maxConcurrent = 16
	}
	if b.maxQueue < 0 {
		b.maxQueue = 0
	}
	if b.acquireTimeout <= 0 {
		b.acquireTimeout = 2 * time.Second
	}

	b.slots = semaphore.NewWeighted(int64(b.maxConcurrent))
	return b
}

func (b *Bulkhead) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.slots.Release(1)

	b.activeCount.Add(1)
	defer b.activeCount.Add(-1)

	err := fn(ctx)
	b.totalExecuted.Add(1)
	return err
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if b.slots.TryAcquire(1) {
		return nil
	}

	if int(b.queuedCount.Add(1)) > b.maxQueue {
		b.queuedCount.Add(-1)
		b.rejectedCount.Add(1)
		return ErrBulkheadFull
	}
	defer b.queuedCount.Add(-1)

	waitCtx, cancel := context.WithTimeout(ctx, b.acquireTimeout)
	defer cancel()

	if err := b.slots.Acquire(waitCtx, 1); err != nil {
		b.rejectedCount.Add(1)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBulkheadTimeout
	}
	return nil
}

func (b *Bulkhead) ActiveCount() int     { return int(b.activeCount.Load()) }
func (b *Bulkhead) QueuedCount() int     { return int(b.queuedCount.Load()) }
func (b *Bulkhead) RejectedCount() int64 { return b.rejectedCount.Load() }
func (b *Bulkhead) TotalExecuted() int64 { return b.totalExecuted.Load() }

// Stats returns bulkhead statistics.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		MaxConcurrent: b.maxConcurrent,
		MaxQueue:      b.maxQueue,
		Active:        b.ActiveCount(),
		Queued:        b.QueuedCount(),
		TotalExecuted: b.TotalExecuted(),
		TotalRejected: b.RejectedCount(),
	}
}

// BulkheadStats contains bulkhead statistics.
type BulkheadStats struct {
	MaxConcurrent int
	MaxQueue      int
	Active        int
	Queued        int
	TotalExecuted int64
	TotalRejected int64
}

// DisabledBulkhead lets every call through.
type DisabledBulkhead struct{}

func NewDisabledBulkhead() *DisabledBulkhead {
	return &DisabledBulkhead{}
}

func (b *DisabledBulkhead) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (b *DisabledBulkhead) Stats() BulkheadStats { return BulkheadStats{} }
