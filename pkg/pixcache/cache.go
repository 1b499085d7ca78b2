package pixcache

import (
	"context"
	"io"
	"time"
)

// Cache is the two-tier image cache.
type Cache interface {
	// Get returns the handle for key from memory, falling back to disk. The
	// handle is not acquired.
	Get(ctx context.Context, key string) (*Handle, error)
	GetFromMemory(ctx context.Context, key string) (*Handle, error)
	GetFromDisk(ctx context.Context, key string, opts ...DecodeOption) (*Handle, error)
	// Acquire returns the handle for key with one active use recorded.
	Acquire(ctx context.Context, key string) (*Handle, error)
	Put(ctx context.Context, key string, res Resource) (*Handle, error)
	PutStream(ctx context.Context, key string, r io.Reader, opts ...DecodeOption) (*Handle, error)
	Remove(ctx context.Context, key string) error
	TrimUnused(ctx context.Context) int
	Contains(ctx context.Context, key string) (bool, error)
	ContainsInMemory(key string) bool
	ContainsInDisk(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	IsMemoryCacheEnabled() bool
	IsDiskCacheEnabled() bool
	Health(ctx context.Context) (*HealthMetrics, error)
	IsHealthy(ctx context.Context) bool
	Close() error
	CloseWithTimeout(timeout time.Duration) error
}

// Publisher sends metrics to an external system.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text string, alertType string, tags ...string)
	PublishHealthMetrics(metrics *PublisherHealthMetrics)
	Close() error
}
