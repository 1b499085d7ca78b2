package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/pixcache/internal/metrics"
	"github.com/LavishGent/pixcache/internal/resilience"
	"github.com/LavishGent/pixcache/internal/store"
	"github.com/LavishGent/pixcache/internal/types"
)

const (
	diskValueIndex = 0

	defaultFlushDelay   = 5 * time.Second
	backgroundFlushTime = 30 * time.Second
)

// DiskOptions configures a DiskCache.
type DiskOptions struct {
	Store   store.Store
	Runner  resilience.Runner
	Metrics types.MetricsRecorder
	Logger  *slog.Logger
	// FlushDelay is the quiet period after the last write before the store
	// is flushed.
	FlushDelay time.Duration
	// LockTimeout bounds the wait for a key's write lock. Zero waits on the
	// caller's context alone.
	LockTimeout time.Duration
}

// DiskCache coordinates access to the persistent store: keys are hashed,
// writes to one key are serialized, and flushes are debounced.
//
// Every method performs blocking I/O and must not be called from a
// goroutine that has to stay responsive.
type DiskCache struct {
	store   store.Store
	runner  resilience.Runner
	metrics types.MetricsRecorder
	logger  *slog.Logger
	locks   *keyLocks
	flusher *flusher
	name    string

	hits         atomic.Int64
	misses       atomic.Int64
	writes       atomic.Int64
	writeErrors  atomic.Int64
	removes      atomic.Int64
	flushes      atomic.Int64
	flushErrors  atomic.Int64
	lockTimeouts atomic.Int64
	lastFlush    atomic.Int64

	errMu         sync.RWMutex
	lastError     error
	lastErrorTime time.Time

	closed atomic.Bool
}

func NewDiskCache(opts DiskOptions) *DiskCache {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Runner == nil {
		opts.Runner = resilience.NewDisabledPolicy()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoOpTracker()
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = defaultFlushDelay
	}

	name := types.LayerDisk
	if named, ok := opts.Store.(store.Named); ok {
		name = named.Name()
	}

	d := &DiskCache{
		store:   opts.Store,
		runner:  opts.Runner,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "disk-cache", "backend", name),
		locks:   newKeyLocks(opts.LockTimeout),
		name:    name,
	}
	d.flusher = newFlusher(opts.FlushDelay, d.backgroundFlush)

	d.runner.SetOnCircuitStateChange(func(from, to resilience.State) {
		d.logger.Warn("Disk store circuit changed state", "from", from.String(), "to", to.String())
		d.metrics.RecordCircuitBreakerStateChange(from.String(), to.String())
	})
	return d
}

// Name returns the store backend name.
func (d *DiskCache) Name() string {
	return d.name
}

// IsAvailable reports whether the store can currently serve requests.
func (d *DiskCache) IsAvailable() bool {
	if d.closed.Load() || d.runner.IsCircuitOpen() {
		return false
	}
	if a, ok := d.store.(interface{ IsAvailable() bool }); ok {
		return a.IsAvailable()
	}
	return true
}

// Get reads the bytes stored under key. A missing entry or an unreadable
// store yields ErrCacheMiss; store failures are logged, not returned.
func (d *DiskCache) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed.Load() {
		return nil, types.ErrClosed
	}

	start := time.Now()
	hashed := HashKey(key)
	data, err := resilience.Do(ctx, d.runner, func(ctx context.Context) ([]byte, error) {
		snap, err := d.store.Get(ctx, hashed)
		if err != nil {
			return nil, err
		}
		defer snap.Close()
		return store.ReadAll(snap, diskValueIndex)
	})
	if err != nil {
		d.misses.Add(1)
		d.metrics.RecordMiss(types.LayerDisk, key, time.Since(start))
		if !store.IsNotFound(err) {
			d.recordError("Get", key, err)
		}
		return nil, types.NewCacheError("Get", key, types.LayerDisk, types.ErrCacheMiss)
	}

	d.hits.Add(1)
	d.metrics.RecordHit(types.LayerDisk, key, time.Since(start))
	return data, nil
}

// Put streams src into a new entry for key. The entry becomes visible only
// if the whole stream was written; otherwise the previous entry, if any,
// is left untouched.
func (d *DiskCache) Put(ctx context.Context, key string, src io.Reader) error {
	if d.closed.Load() {
		return types.ErrClosed
	}

	start := time.Now()
	hashed := HashKey(key)
	unlock, err := d.locks.lock(ctx, hashed)
	if err != nil {
		if types.IsLockTimeout(err) {
			d.lockTimeouts.Add(1)
			d.logger.Warn("Timed out waiting for disk entry lock", "key", key)
		}
		return types.NewCacheError("Put", key, types.LayerDisk, err)
	}
	defer unlock()

	var written int64
	err = d.runner.ExecuteOnce(ctx, func(ctx context.Context) error {
		n, err := d.write(ctx, hashed, src)
		written = n
		return err
	})
	if err != nil {
		d.writeErrors.Add(1)
		d.recordError("Put", key, err)
		return types.NewCacheError("Put", key, types.LayerDisk, err)
	}

	d.writes.Add(1)
	d.metrics.RecordSet(types.LayerDisk, key, int(written), time.Since(start))
	d.flusher.Schedule()
	return nil
}

func (d *DiskCache) write(ctx context.Context, hashed string, src io.Reader) (int64, error) {
	ed, err := d.store.Edit(ctx, hashed)
	if err != nil {
		return 0, err
	}

	w, err := ed.NewWriter(diskValueIndex)
	if err != nil {
		_ = ed.Abort()
		return 0, err
	}
	n, err := io.Copy(w, src)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = ed.Abort()
		return 0, err
	}
	if err := ed.Commit(); err != nil {
		_ = ed.Abort()
		return 0, err
	}
	return n, nil
}

// Remove deletes the entry for key. Removing a missing entry is not an error.
func (d *DiskCache) Remove(ctx context.Context, key string) error {
	if d.closed.Load() {
		return types.ErrClosed
	}

	start := time.Now()
	hashed := HashKey(key)
	unlock, err := d.locks.lock(ctx, hashed)
	if err != nil {
		if types.IsLockTimeout(err) {
			d.lockTimeouts.Add(1)
		}
		return types.NewCacheError("Remove", key, types.LayerDisk, err)
	}
	defer unlock()

	err = d.runner.ExecuteKeyed(ctx, func(ctx context.Context) error {
		return d.store.Remove(ctx, hashed)
	})
	if err != nil && !store.IsNotFound(err) {
		d.recordError("Remove", key, err)
		return types.NewCacheError("Remove", key, types.LayerDisk, err)
	}

	d.removes.Add(1)
	d.metrics.RecordDelete(types.LayerDisk, key, time.Since(start))
	if err == nil {
		d.flusher.Schedule()
	}
	return nil
}

// Contains reports whether a committed entry exists for key.
func (d *DiskCache) Contains(ctx context.Context, key string) (bool, error) {
	if d.closed.Load() {
		return false, types.ErrClosed
	}

	hashed := HashKey(key)
	err := d.runner.Execute(ctx, func(ctx context.Context) error {
		snap, err := d.store.Get(ctx, hashed)
		if err != nil {
			return err
		}
		return snap.Close()
	})
	switch {
	case err == nil:
		return true, nil
	case store.IsNotFound(err):
		return false, nil
	default:
		return false, types.NewCacheError("Contains", key, types.LayerDisk, err)
	}
}

// ScheduleFlush arms the debounced flush.
func (d *DiskCache) ScheduleFlush() {
	if d.closed.Load() {
		return
	}
	d.flusher.Schedule()
}

// Flush cancels any pending debounced flush and flushes now.
func (d *DiskCache) Flush(ctx context.Context) error {
	if d.closed.Load() {
		return types.ErrClosed
	}
	d.flusher.Cancel()
	return d.flushNow(ctx)
}

func (d *DiskCache) flushNow(ctx context.Context) error {
	start := time.Now()
	err := d.runner.Execute(ctx, func(ctx context.Context) error {
		return d.store.Flush(ctx)
	})
	d.flushes.Add(1)
	d.metrics.RecordFlush(time.Since(start), err)
	if err != nil {
		d.flushErrors.Add(1)
		d.recordError("Flush", "", err)
		return types.NewCacheError("Flush", "", types.LayerDisk, err)
	}
	d.lastFlush.Store(time.Now().UnixNano())
	d.logger.Debug("Disk store flushed", "duration", time.Since(start))
	return nil
}

func (d *DiskCache) backgroundFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundFlushTime)
	defer cancel()
	_ = d.flushNow(ctx)
}

func (d *DiskCache) recordError(op, key string, err error) {
	d.errMu.Lock()
	d.lastError = err
	d.lastErrorTime = time.Now()
	d.errMu.Unlock()

	d.metrics.RecordError(types.LayerDisk, op, err)
	if resilience.IsCircuitOpen(err) {
		d.logger.Debug("Disk store circuit open, skipping call", "op", op, "key", key)
		return
	}
	d.logger.Warn("Disk store operation failed", "op", op, "key", key, "error", err)
}

// LastError returns the most recent store failure.
func (d *DiskCache) LastError() error {
	d.errMu.RLock()
	defer d.errMu.RUnlock()
	return d.lastError
}

func (d *DiskCache) LastErrorTime() time.Time {
	d.errMu.RLock()
	defer d.errMu.RUnlock()
	return d.lastErrorTime
}

func (d *DiskCache) Stats() types.DiskCacheStats {
	stats := types.DiskCacheStats{
		Hits:         d.hits.Load(),
		Misses:       d.misses.Load(),
		Writes:       d.writes.Load(),
		WriteErrors:  d.writeErrors.Load(),
		Removes:      d.removes.Load(),
		Flushes:      d.flushes.Load(),
		FlushErrors:  d.flushErrors.Load(),
		LockTimeouts: d.lockTimeouts.Load(),
	}
	if ns := d.lastFlush.Load(); ns > 0 {
		stats.LastFlushTime = time.Unix(0, ns)
	}
	return stats
}

func (d *DiskCache) SizeBytes() int64 {
	return d.store.Size()
}

func (d *DiskCache) MaxSizeBytes() int64 {
	return d.store.MaxSize()
}

// Close stops the debounce timer, flushes once more and closes the store.
func (d *DiskCache) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.flusher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), backgroundFlushTime)
	defer cancel()

	var errs []error
	if err := d.store.Flush(ctx); err != nil && !errors.Is(err, store.ErrClosed) {
		errs = append(errs, fmt.Errorf("final flush: %w", err))
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

var _ types.DiskLayer = (*DiskCache)(nil)
