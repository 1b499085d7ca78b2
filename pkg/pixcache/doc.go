// Package pixcache is a two-tier cache for decoded images.
//
// Decoded bitmaps live in a memory LRU bounded by their byte size. Behind it
// sits a persistent disk tier holding the encoded bytes, so an entry evicted
// from memory can be decoded again without going back to the network. Every
// cached bitmap is wrapped in a Handle that counts cache memberships and
// active uses; once both reach zero the configured reclaim policy decides
// when its pixel buffer is released. Released buffers of a given shape are
// kept in a weak pool and reused by the next decode of that shape.
//
// # Quick Start
//
//	c, err := pixcache.New(pixcache.WithDiskLocation("/var/cache/myapp/images"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
// # Storing and Loading
//
// Put caches an already decoded bitmap and writes it through to disk:
//
//	bm := pixcache.BitmapFromImage(img)
//	h, err := c.Put(ctx, "https://example.com/avatar.png", bm)
//
// PutStream stores encoded bytes as they arrive, for example from an HTTP
// response body:
//
//	h, err := c.PutStream(ctx, url, resp.Body)
//
// Acquire returns a handle with one active use recorded. The resource is
// guaranteed to stay alive until Release:
//
//	h, err := c.Acquire(ctx, url)
//	if pixcache.IsCacheMiss(err) {
//	    // fetch it
//	}
//	defer h.Release()
//	err = h.Use(func(res pixcache.Resource) error {
//	    img, err := res.(*pixcache.Bitmap).Image()
//	    ...
//	})
//
// # Reclaim Policies
//
//   - disabled: buffers are left to the garbage collector
//   - eager: a buffer is reclaimed as soon as nothing references it
//   - lazy: never-used buffers are reclaimed at once, used ones after a grace
//     period that any new use cancels
//
// # Disk Backends
//
// The disk tier is a journaled LRU on the local filesystem by default.
// Redis and an in-process bigcache store are available through configuration:
//
//	cfg := pixcache.Config()
//	cfg.Disk.Backend = "redis"
//	cfg.Redis.Address = "localhost:6379"
//	c, err := pixcache.NewFromConfig(cfg)
//
// # Observability
//
// Health reports both tiers and the reuse pool. When metrics.datadog.enabled
// is set, health gauges are pushed to a DogStatsD agent in the background.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Disk operations block on I/O
// and should not run on latency-sensitive goroutines.
package pixcache
