package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/LavishGent/pixcache/internal/handle"
	"github.com/LavishGent/pixcache/internal/metrics"
	"github.com/LavishGent/pixcache/internal/pool"
	"github.com/LavishGent/pixcache/internal/types"
)

func newTestMemoryCache(maxSize int64, reuse *pool.Pool) *MemoryCache {
	return NewMemoryCache(maxSize, reuse, metrics.NewNoOpTracker(), nil)
}

func TestMemoryCacheName(t *testing.T) {
	c := newTestMemoryCache(100, nil)
	if name := c.Name(); name != "memory" {
		t.Errorf("Name() = %s, want memory", name)
	}
}

func TestMemoryCacheIsAvailable(t *testing.T) {
	c := newTestMemoryCache(100, nil)

	t.Run("available when open", func(t *testing.T) {
		if !c.IsAvailable() {
			t.Error("IsAvailable() = false, want true")
		}
	})

	t.Run("unavailable when closed", func(t *testing.T) {
		c.Close()
		if c.IsAvailable() {
			t.Error("IsAvailable() = true, want false after close")
		}
	})
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	a, resA := newTestHandle(60, sched)
	b, _ := newTestHandle(50, sched)
	cc, _ := newTestHandle(40, sched)

	if _, err := c.Put("a", a); err != nil {
		t.Fatalf("Put(a) error = %v", err)
	}
	if _, err := c.Put("b", b); err != nil {
		t.Fatalf("Put(b) error = %v", err)
	}

	if c.Contains("a") {
		t.Error("a should have been evicted")
	}
	if a.IsValid() || resA.reclaims.Load() != 1 {
		t.Errorf("evicted unused handle should be reclaimed once, reclaims = %d", resA.reclaims.Load())
	}
	if got := c.Size(); got != 50 {
		t.Errorf("Size() = %d, want 50", got)
	}

	if _, err := c.Put("c", cc); err != nil {
		t.Fatalf("Put(c) error = %v", err)
	}
	if got := c.Keys(); len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Errorf("Keys() = %v, want [c b]", got)
	}
	if got := c.Size(); got != 90 {
		t.Errorf("Size() = %d, want 90", got)
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestMemoryCacheRecencyOnGet(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	for _, key := range []string{"a", "b", "c"} {
		h, _ := newTestHandle(30, sched)
		if _, err := c.Put(key, h); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed")
	}

	d, _ := newTestHandle(30, sched)
	if _, err := c.Put("d", d); err != nil {
		t.Fatalf("Put(d) error = %v", err)
	}

	if !c.Contains("a") {
		t.Error("a was used recently and should survive")
	}
	if c.Contains("b") {
		t.Error("b was least recently used and should be evicted")
	}
}

func TestMemoryCacheSizeNeverExceedsBudget(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(1000, nil)

	for i := 0; i < 200; i++ {
		h, _ := newTestHandle(int64(10+(i*37)%250), sched)
		if _, err := c.Put(fmt.Sprintf("k%d", i), h); err != nil {
			t.Fatalf("Put error = %v", err)
		}
		if c.Size() > c.MaxSize() {
			t.Fatalf("Size() = %d exceeds budget %d after put %d", c.Size(), c.MaxSize(), i)
		}
	}
}

func TestMemoryCacheReplace(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	first, firstRes := newTestHandle(40, sched)
	second, _ := newTestHandle(20, sched)

	if _, err := c.Put("k", first); err != nil {
		t.Fatalf("Put error = %v", err)
	}
	prev, err := c.Put("k", second)
	if err != nil {
		t.Fatalf("Put error = %v", err)
	}

	if prev != first {
		t.Error("Put should return the replaced handle")
	}
	if first.IsValid() || firstRes.reclaims.Load() != 1 {
		t.Error("replaced handle should be reclaimed")
	}
	if got := c.Size(); got != 20 {
		t.Errorf("Size() = %d, want 20", got)
	}
	if got := second.CacheRefCount(); got != 1 {
		t.Errorf("CacheRefCount() = %d, want 1", got)
	}

	t.Run("same handle keeps one membership", func(t *testing.T) {
		prev, err := c.Put("k", second)
		if err != nil {
			t.Fatalf("Put error = %v", err)
		}
		if prev != nil {
			t.Error("re-put of the same handle should not report a replacement")
		}
		if got := second.CacheRefCount(); got != 1 {
			t.Errorf("CacheRefCount() = %d, want 1", got)
		}
		if !second.IsValid() {
			t.Error("re-put handle must stay valid")
		}
	})
}

func TestMemoryCacheRejectsOversizedEntry(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	small, _ := newTestHandle(50, sched)
	if _, err := c.Put("small", small); err != nil {
		t.Fatalf("Put error = %v", err)
	}

	big, _ := newTestHandle(101, sched)
	_, err := c.Put("big", big)
	if !errors.Is(err, types.ErrEntryTooLarge) {
		t.Fatalf("Put error = %v, want ErrEntryTooLarge", err)
	}
	if !c.Contains("small") {
		t.Error("rejected put must not evict existing entries")
	}
	if got := big.CacheRefCount(); got != 0 {
		t.Errorf("CacheRefCount() = %d, want 0", got)
	}
	if got := c.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
}

func TestMemoryCacheEvictedActiveHandleStaysValid(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	a, _ := newTestHandle(60, sched)
	if _, err := c.Put("a", a); err != nil {
		t.Fatalf("Put error = %v", err)
	}
	if err := a.Acquire(); err != nil {
		t.Fatalf("Acquire error = %v", err)
	}

	b, _ := newTestHandle(60, sched)
	if _, err := c.Put("b", b); err != nil {
		t.Fatalf("Put error = %v", err)
	}

	if c.Contains("a") {
		t.Fatal("a should be evicted")
	}
	if !a.IsValid() {
		t.Fatal("an evicted handle in active use must stay valid")
	}

	a.Release()
	if a.IsValid() {
		t.Error("handle should be reclaimed once its last use is released")
	}
}

func TestMemoryCacheGetAndAcquire(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	t.Run("miss", func(t *testing.T) {
		_, err := c.GetAndAcquire("missing")
		if !errors.Is(err, types.ErrCacheMiss) {
			t.Errorf("GetAndAcquire error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("hit records active use", func(t *testing.T) {
		h, _ := newTestHandle(10, sched)
		if _, err := c.Put("k", h); err != nil {
			t.Fatalf("Put error = %v", err)
		}
		got, err := c.GetAndAcquire("k")
		if err != nil {
			t.Fatalf("GetAndAcquire error = %v", err)
		}
		if got != h {
			t.Error("GetAndAcquire returned a different handle")
		}
		if got.ActiveUseCount() != 1 {
			t.Errorf("ActiveUseCount() = %d, want 1", got.ActiveUseCount())
		}
		got.Release()
	})

	t.Run("closed", func(t *testing.T) {
		closed := newTestMemoryCache(100, nil)
		closed.Close()
		if _, err := closed.GetAndAcquire("k"); !errors.Is(err, types.ErrClosed) {
			t.Errorf("GetAndAcquire error = %v, want ErrClosed", err)
		}
	})
}

func TestMemoryCacheOffersEvictedHandlesToPool(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	reuse := pool.New(4, nil)
	c := newTestMemoryCache(100, reuse)

	a, resA := newTestHandle(60, sched)
	if _, err := c.Put("a", a); err != nil {
		t.Fatalf("Put error = %v", err)
	}
	if err := a.Acquire(); err != nil {
		t.Fatalf("Acquire error = %v", err)
	}
	b, _ := newTestHandle(60, sched)
	if _, err := c.Put("b", b); err != nil {
		t.Fatalf("Put error = %v", err)
	}
	a.Release()

	if got := reuse.Stats().Offered; got != 1 {
		t.Errorf("Offered = %d, want 1", got)
	}
	if resA.reclaims.Load() != 1 {
		t.Errorf("released handle should be reclaimed, reclaims = %d", resA.reclaims.Load())
	}
	if _, ok := reuse.Claim(60, 1); ok {
		t.Error("a reclaimed handle must not be handed out by the pool")
	}

	t.Run("unused eviction", func(t *testing.T) {
		keep := handle.NewScheduler(handle.Config{Policy: types.PolicyDisabled})
		reuse := pool.New(4, nil)
		c := newTestMemoryCache(100, reuse)

		x, _ := newTestHandle(60, keep)
		if _, err := c.Put("x", x); err != nil {
			t.Fatalf("Put error = %v", err)
		}
		y, _ := newTestHandle(60, keep)
		if _, err := c.Put("y", y); err != nil {
			t.Fatalf("Put error = %v", err)
		}

		if got := reuse.Len(); got != 1 {
			t.Errorf("pool Len() = %d, want 1", got)
		}
		res, ok := reuse.Claim(60, 1)
		if !ok || res == nil {
			t.Fatal("pool should hand out the evicted allocation")
		}
		if x.IsValid() {
			t.Error("surrendered handle must be invalid")
		}
	})
}

func TestMemoryCacheRemove(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	h, res := newTestHandle(10, sched)
	if _, err := c.Put("k", h); err != nil {
		t.Fatalf("Put error = %v", err)
	}

	if got := c.Remove("k"); got != h {
		t.Error("Remove should return the removed handle")
	}
	if c.Remove("k") != nil {
		t.Error("second Remove should return nil")
	}
	if res.reclaims.Load() != 1 {
		t.Errorf("reclaims = %d, want 1", res.reclaims.Load())
	}
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("Len() = %d, Size() = %d, want empty", c.Len(), c.Size())
	}
}

func TestMemoryCacheTrimUnused(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	used, _ := newTestHandle(10, sched)
	idle, idleRes := newTestHandle(10, sched)
	for key, h := range map[string]*handle.Handle{"used": used, "idle": idle} {
		if _, err := c.Put(key, h); err != nil {
			t.Fatalf("Put error = %v", err)
		}
	}
	if err := used.Acquire(); err != nil {
		t.Fatalf("Acquire error = %v", err)
	}
	defer used.Release()

	if n := c.TrimUnused(); n != 1 {
		t.Errorf("TrimUnused() = %d, want 1", n)
	}
	if !c.Contains("used") || c.Contains("idle") {
		t.Errorf("Keys() = %v, want [used]", c.Keys())
	}
	if idleRes.reclaims.Load() != 1 {
		t.Error("trimmed handle should be reclaimed")
	}
}

func TestMemoryCacheClear(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	handles := make([]*handle.Handle, 3)
	for i := range handles {
		handles[i], _ = newTestHandle(10, sched)
		if _, err := c.Put(fmt.Sprintf("k%d", i), handles[i]); err != nil {
			t.Fatalf("Put error = %v", err)
		}
	}

	c.Clear()

	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("Len() = %d, Size() = %d after Clear", c.Len(), c.Size())
	}
	for i, h := range handles {
		if h.CacheRefCount() != 0 {
			t.Errorf("handle %d still has membership", i)
		}
	}

	t.Run("offers survivors to the pool", func(t *testing.T) {
		keep := handle.NewScheduler(handle.Config{Policy: types.PolicyDisabled})
		reuse := pool.New(4, nil)
		c := newTestMemoryCache(100, reuse)

		for i := 0; i < 3; i++ {
			h, _ := newTestHandle(20, keep)
			if _, err := c.Put(fmt.Sprintf("k%d", i), h); err != nil {
				t.Fatalf("Put error = %v", err)
			}
		}

		c.Clear()

		if got := reuse.Stats().Offered; got != 3 {
			t.Errorf("Offered = %d, want 3", got)
		}
		if _, ok := reuse.Claim(20, 1); !ok {
			t.Error("a cleared handle should be claimable")
		}
	})
}

func TestMemoryCacheStats(t *testing.T) {
	sched := newTestScheduler(types.PolicyEager)
	c := newTestMemoryCache(100, nil)

	h, _ := newTestHandle(25, sched)
	if _, err := c.Put("k", h); err != nil {
		t.Fatalf("Put error = %v", err)
	}
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if got := c.HitRatio(); got < 0.66 || got > 0.67 {
		t.Errorf("HitRatio() = %f, want 2/3", got)
	}
	if got := c.UsagePercentage(); got != 25 {
		t.Errorf("UsagePercentage() = %f, want 25", got)
	}
}

func TestMemoryCacheConcurrency(t *testing.T) {
	sched := newTestScheduler(types.PolicyLazy)
	c := newTestMemoryCache(500, pool.New(8, nil))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*7+i)%40)
				switch i % 4 {
				case 0, 1:
					h, _ := newTestHandle(int64(10+i%30), sched)
					_, _ = c.Put(key, h)
				case 2:
					if h, err := c.GetAndAcquire(key); err == nil {
						h.Release()
					}
				default:
					c.Remove(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > c.MaxSize() {
		t.Errorf("Size() = %d exceeds budget %d", c.Size(), c.MaxSize())
	}
}
