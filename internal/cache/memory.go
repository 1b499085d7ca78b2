package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/LavishGent/pixcache/internal/handle"
	"github.com/LavishGent/pixcache/internal/pool"
	"github.com/LavishGent/pixcache/internal/types"
)

// MemoryCache is an LRU of handles bounded by the sum of their byte sizes.
// Membership is reflected on each handle through SetCached, so leaving the
// cache may trigger reclamation.
type MemoryCache struct {
	logger  *slog.Logger
	metrics types.MetricsRecorder
	reuse   *pool.Pool

	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List
	size    int64
	maxSize int64

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
	rejected  atomic.Int64

	closed atomic.Bool
}

type memoryEntry struct {
	key    string
	handle *handle.Handle
	size   int64
}

// NewMemoryCache creates a cache holding at most maxSize bytes. Removed
// handles that are still valid and mutable are offered to reuse, which may
// be nil.
func NewMemoryCache(maxSize int64, reuse *pool.Pool, metrics types.MetricsRecorder, logger *slog.Logger) *MemoryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryCache{
		logger:  logger.With("component", "memory-cache"),
		metrics: metrics,
		reuse:   reuse,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Name returns the cache layer name.
func (c *MemoryCache) Name() string {
	return types.LayerMemory
}

// IsAvailable returns true if the cache is not closed.
func (c *MemoryCache) IsAvailable() bool {
	return !c.closed.Load()
}

// Get returns the handle for key and marks it most recently used.
func (c *MemoryCache) Get(key string) (*handle.Handle, bool) {
	if c.closed.Load() {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return elem.Value.(*memoryEntry).handle, true
}

// GetAndAcquire looks up key and records an active use before the cache
// lock is released, so an eviction cannot reclaim the handle in between.
func (c *MemoryCache) GetAndAcquire(key string) (*handle.Handle, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	}
	h := elem.Value.(*memoryEntry).handle
	if err := h.Acquire(); err != nil {
		return nil, err
	}
	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return h, nil
}

// Put maps key to h and returns the handle it replaced, if any. Least
// recently used entries are then evicted until the cache fits its budget.
// A handle larger than the whole budget is not inserted.
func (c *MemoryCache) Put(key string, h *handle.Handle) (*handle.Handle, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	size := h.SizeBytes()
	if size > c.maxSize {
		c.rejected.Add(1)
		c.logger.Debug("Entry larger than memory budget, not caching",
			"key", key,
			"size_bytes", size,
			"max_size_bytes", c.maxSize,
		)
		return nil, types.ErrEntryTooLarge
	}

	if err := h.SetCached(true); err != nil {
		return nil, err
	}

	c.mu.Lock()
	var prev *handle.Handle
	if elem, ok := c.items[key]; ok {
		old := elem.Value.(*memoryEntry)
		c.lru.Remove(elem)
		delete(c.items, key)
		c.size -= old.size
		prev = old.handle
	}

	c.items[key] = c.lru.PushFront(&memoryEntry{key: key, handle: h, size: size})
	c.size += size
	evicted := c.evictLocked()
	c.mu.Unlock()

	c.sets.Add(1)
	for _, e := range evicted {
		c.evictions.Add(1)
		if c.metrics != nil {
			c.metrics.RecordEviction(types.LayerMemory, e.size)
		}
		c.release(e.handle)
	}

	switch prev {
	case nil:
	case h:
		// Re-put of the same handle keeps a single membership.
		_ = h.SetCached(false)
		return nil, nil
	default:
		c.release(prev)
	}
	return prev, nil
}

// evictLocked unlinks entries from the LRU end until the budget holds. The
// caller releases the returned handles after dropping c.mu.
func (c *MemoryCache) evictLocked() []*memoryEntry {
	var evicted []*memoryEntry
	for c.size > c.maxSize {
		back := c.lru.Back()
		if back == nil {
			break
		}
		e := back.Value.(*memoryEntry)
		c.lru.Remove(back)
		delete(c.items, e.key)
		c.size -= e.size
		evicted = append(evicted, e)
	}
	return evicted
}

// release drops cache membership and hands surviving mutable handles to the
// reuse pool.
func (c *MemoryCache) release(h *handle.Handle) {
	_ = h.SetCached(false)
	if c.reuse != nil && h.IsMutable() && h.IsValid() {
		c.reuse.Offer(h)
	}
}

// Remove deletes key and returns the handle it held.
func (c *MemoryCache) Remove(key string) *handle.Handle {
	if c.closed.Load() {
		return nil
	}

	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	e := elem.Value.(*memoryEntry)
	c.lru.Remove(elem)
	delete(c.items, key)
	c.size -= e.size
	c.mu.Unlock()

	c.deletes.Add(1)
	c.release(e.handle)
	return e.handle
}

// Contains reports whether key is cached without touching its recency.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// TrimUnused removes every entry that nobody is actively using and returns
// how many were removed.
func (c *MemoryCache) TrimUnused() int {
	if c.closed.Load() {
		return 0
	}

	c.mu.Lock()
	var unused []*memoryEntry
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*memoryEntry)
		if e.handle.ActiveUseCount() == 0 {
			c.lru.Remove(elem)
			delete(c.items, e.key)
			c.size -= e.size
			unused = append(unused, e)
		}
		elem = next
	}
	c.mu.Unlock()

	for _, e := range unused {
		c.release(e.handle)
	}
	if len(unused) > 0 {
		c.logger.Debug("Trimmed unused entries", "count", len(unused))
	}
	return len(unused)
}

// Keys returns the cached keys from most to least recently used.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*memoryEntry).key)
	}
	return keys
}

// Clear removes every entry, releasing each one like Remove does.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	all := make([]*memoryEntry, 0, len(c.items))
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		all = append(all, elem.Value.(*memoryEntry))
	}
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.size = 0
	c.mu.Unlock()

	for _, e := range all {
		c.release(e.handle)
	}
}

// Close drops every entry. Later calls are no-ops.
func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.Clear()
	return nil
}

func (c *MemoryCache) Stats() types.MemoryCacheStats {
	return types.MemoryCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
		Rejected:  c.rejected.Load(),
	}
}

// Len returns the number of entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the summed byte size of all entries.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *MemoryCache) MaxSize() int64 {
	return c.maxSize
}

// UsagePercentage returns the memory cache usage as a percentage.
func (c *MemoryCache) UsagePercentage() float64 {
	if c.maxSize == 0 {
		return 0
	}
	return float64(c.Size()) / float64(c.maxSize) * 100
}

// HitRatio returns the cache hit ratio.
func (c *MemoryCache) HitRatio() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
