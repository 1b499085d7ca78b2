package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/LavishGent/pixcache/internal/types"
)

// keyLocks serializes disk writes per hashed key. Locks are created on first
// use and never removed; the set of keys a process writes is bounded by the
// store's own size.
type keyLocks struct {
	mu      sync.Mutex
	locks   map[string]*semaphore.Weighted
	timeout time.Duration
}

func newKeyLocks(timeout time.Duration) *keyLocks {
	return &keyLocks{
		locks:   make(map[string]*semaphore.Weighted),
		timeout: timeout,
	}
}

func (l *keyLocks) get(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.locks[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[key] = sem
	}
	return sem
}

// lock blocks until key is free. It gives up with ErrLockTimeout after the
// configured timeout, or with ctx's error if ctx ends first. A zero timeout
// waits on ctx alone.
func (l *keyLocks) lock(ctx context.Context, key string) (func(), error) {
	sem := l.get(key)

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.ErrLockTimeout
	}
	return func() { sem.Release(1) }, nil
}

// len returns the number of keys that have ever been locked.
func (l *keyLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
