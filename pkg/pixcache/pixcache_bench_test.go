package pixcache_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/LavishGent/pixcache/pkg/pixcache"
)

func BenchmarkMemoryOnly_Put(b *testing.B) {
	c, err := pixcache.NewMemoryOnly()
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Put(ctx, fmt.Sprintf("img:%d", i), pixcache.NewBitmap(32, 32))
	}
}

func BenchmarkMemoryOnly_Acquire(b *testing.B) {
	c, err := pixcache.NewMemoryOnly()
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, _ = c.Put(ctx, fmt.Sprintf("img:%d", i), pixcache.NewBitmap(32, 32))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if h, err := c.Acquire(ctx, fmt.Sprintf("img:%d", i%100)); err == nil {
			h.Release()
		}
	}
}

func BenchmarkTwoTier_PutAndReload(b *testing.B) {
	c, err := pixcache.NewFromConfig(pixcache.TestConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("img:%d", i%64)
		_, _ = c.Put(ctx, key, pixcache.NewBitmap(32, 32))
		c.TrimUnused(ctx)
		_, _ = c.GetFromDisk(ctx, key, pixcache.WithSkipPromotion())
	}
}

func BenchmarkConcurrentAcquire(b *testing.B) {
	c, err := pixcache.NewFromConfig(pixcache.TestConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 16; i++ {
		_, _ = c.Put(ctx, fmt.Sprintf("img:%d", i), pixcache.NewBitmap(32, 32))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if h, err := c.Acquire(ctx, fmt.Sprintf("img:%d", i%16)); err == nil {
				h.Release()
			}
			i++
		}
	})
}
