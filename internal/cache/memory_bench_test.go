package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/LavishGent/pixcache/internal/config"
	"github.com/LavishGent/pixcache/internal/handle"
	"github.com/LavishGent/pixcache/internal/types"
)

func BenchmarkMemoryCache_Put(b *testing.B) {
	sched := handle.NewScheduler(handle.Config{Policy: types.PolicyEager})
	cache := newTestMemoryCache(256*1024*1024, nil)
	defer cache.Close()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		h, _ := newTestHandle(64*1024, sched)
		_, _ = cache.Put(fmt.Sprintf("key:%d", i), h)
	}
}

func BenchmarkMemoryCache_PutEvicting(b *testing.B) {
	sched := handle.NewScheduler(handle.Config{Policy: types.PolicyEager})
	cache := newTestMemoryCache(1024*1024, nil)
	defer cache.Close()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		h, _ := newTestHandle(64*1024, sched)
		_, _ = cache.Put(fmt.Sprintf("key:%d", i), h)
	}
}

func BenchmarkMemoryCache_Get(b *testing.B) {
	sched := handle.NewScheduler(handle.Config{Policy: types.PolicyEager})
	cache := newTestMemoryCache(256*1024*1024, nil)
	defer cache.Close()

	for i := 0; i < 1000; i++ {
		h, _ := newTestHandle(1024, sched)
		_, _ = cache.Put(fmt.Sprintf("key:%d", i), h)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cache.Get(fmt.Sprintf("key:%d", i%1000))
	}
}

func BenchmarkMemoryCache_GetAndAcquireParallel(b *testing.B) {
	sched := handle.NewScheduler(handle.Config{Policy: types.PolicyEager})
	cache := newTestMemoryCache(256*1024*1024, nil)
	defer cache.Close()

	for i := 0; i < 1000; i++ {
		h, _ := newTestHandle(1024, sched)
		_, _ = cache.Put(fmt.Sprintf("key:%d", i), h)
	}

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if h, err := cache.GetAndAcquire(fmt.Sprintf("key:%d", i%1000)); err == nil {
				h.Release()
			}
			i++
		}
	})
}

func BenchmarkManager_GetMemoryHit(b *testing.B) {
	m, err := NewManager(config.ForTesting(), nil)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()

	ctx := context.Background()
	if _, err := m.Put(ctx, "key", solidBitmap(64, 64, red)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = m.Get(ctx, "key")
	}
}

func BenchmarkManager_GetFromDisk(b *testing.B) {
	m, err := NewManager(config.ForTesting(), nil)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()

	ctx := context.Background()
	if _, err := m.Put(ctx, "key", solidBitmap(64, 64, red)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = m.GetFromDisk(ctx, "key", types.WithSkipPromotion())
	}
}

func BenchmarkHashKey(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = HashKey("https://example.com/images/avatar.png?size=128")
	}
}
