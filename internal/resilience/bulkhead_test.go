package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/pixcache/internal/config"
)

func TestNewBulkhead(t *testing.T) {
	t.Run("creates with config values", func(t *testing.T) {
		b := NewBulkhead(config.BulkheadConfig{
			MaxConcurrent:  20,
			MaxQueue:       10,
			AcquireTimeout: 500 * time.Millisecond,
		})

		assert.Equal(t, 20, b.maxConcurrent)
		assert.Equal(t, 10, b.maxQueue)
		assert.Equal(t, 500*time.Millisecond, b.acquireTimeout)
	})

	t.Run("applies defaults for zero values", func(t *testing.T) {
		b := NewBulkhead(config.BulkheadConfig{})

		assert.Equal(t, 16, b.maxConcurrent)
		assert.Equal(t, 0, b.maxQueue)
		assert.Equal(t, 2*time.Second, b.acquireTimeout)
	})
}

func TestBulkheadExecute(t *testing.T) {
	t.Run("runs the function and propagates its error", func(t *testing.T) {
		b := NewBulkhead(config.BulkheadConfig{MaxConcurrent: 2})

		var executed bool
		err := b.Execute(context.Background(), func(context.Context) error {
			executed = true
			return errStoreDown
		})

		assert.True(t, executed)
		assert.ErrorIs(t, err, errStoreDown)
		assert.EqualValues(t, 1, b.TotalExecuted())
	})

	t.Run("limits concurrency", func(t *testing.T) {
		b := NewBulkhead(config.BulkheadConfig{
			MaxConcurrent:  3,
			MaxQueue:       100,
			AcquireTimeout: 5 * time.Second,
		})

		var current, peak atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = b.Execute(context.Background(), func(context.Context) error {
					n := current.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					current.Add(-1)
					return nil
				})
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, peak.Load(), int32(3))
		assert.EqualValues(t, 20, b.TotalExecuted())
	})

	t.Run("rejects when the queue is full", func(t *testing.T) {
		b := NewBulkhead(config.BulkheadConfig{
			MaxConcurrent:  1,
			MaxQueue:       0,
			AcquireTimeout: time.Second,
		})

		hold := make(chan struct{})
		started := make(chan struct{})
		go func() {
			_ = b.Execute(context.Background(), func(context.Context) error {
				close(started)
				<-hold
				return nil
			})
		}()
		<-started

		err := b.Execute(context.Background(), func(context.Context) error { return nil })
		close(hold)

		assert.ErrorIs(t, err, ErrBulkheadFull)
		assert.EqualValues(t, 1, b.RejectedCount())
	})

	t.Run("times out waiting in the queue", func(t *testing.T) {
		b := NewBulkhead(config.BulkheadConfig{
			MaxConcurrent:  1,
			MaxQueue:       1,
			AcquireTimeout: 20 * time.Millisecond,
		})

		hold := make(chan struct{})
		started := make(chan struct{})
		go func() {
			_ = b.Execute(context.Background(), func(context.Context) error {
				close(started)
				<-hold
				return nil
			})
		}()
		<-started
		defer close(hold)

		err := b.Execute(context.Background(), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrBulkheadTimeout)
		assert.Equal(t, 0, b.QueuedCount())
	})

	t.Run("returns the caller's context error", func(t *testing.T) {
		b := NewBulkhead(config.BulkheadConfig{
			MaxConcurrent:  1,
			MaxQueue:       1,
			AcquireTimeout: time.Second,
		})

		hold := make(chan struct{})
		started := make(chan struct{})
		go func() {
			_ = b.Execute(context.Background(), func(context.Context) error {
				close(started)
				<-hold
				return nil
			})
		}()
		<-started
		defer close(hold)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := b.Execute(ctx, func(context.Context) error { return nil })
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestBulkheadStats(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{MaxConcurrent: 4, MaxQueue: 2})
	_ = b.Execute(context.Background(), func(context.Context) error { return nil })

	stats := b.Stats()
	assert.Equal(t, 4, stats.MaxConcurrent)
	assert.Equal(t, 2, stats.MaxQueue)
	assert.EqualValues(t, 1, stats.TotalExecuted)
	assert.Equal(t, 0, stats.Active)
}

func TestDisabledBulkhead(t *testing.T) {
	b := NewDisabledBulkhead()
	err := b.Execute(context.Background(), func(context.Context) error { return errStoreDown })
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, BulkheadStats{}, b.Stats())
}
