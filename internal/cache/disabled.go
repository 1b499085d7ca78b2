package cache

import (
	"context"
	"io"
	"time"

	"github.com/LavishGent/pixcache/internal/handle"
	"github.com/LavishGent/pixcache/internal/types"
)

// MemoryLayer is the in-memory tier as seen by the manager.
type MemoryLayer interface {
	types.CacheInfo
	Get(key string) (*handle.Handle, bool)
	GetAndAcquire(key string) (*handle.Handle, error)
	Put(key string, h *handle.Handle) (*handle.Handle, error)
	Remove(key string) *handle.Handle
	Contains(key string) bool
	TrimUnused() int
	Clear()
	Stats() types.MemoryCacheStats
	Len() int
	Size() int64
	MaxSize() int64
	UsagePercentage() float64
	HitRatio() float64
	Close() error
}

// DisabledMemoryCache is a no-op memory cache implementation.
type DisabledMemoryCache struct{}

func NewDisabledMemoryCache() *DisabledMemoryCache {
	return &DisabledMemoryCache{}
}

func (c *DisabledMemoryCache) Name() string      { return "memory-disabled" }
func (c *DisabledMemoryCache) IsAvailable() bool { return false }

func (c *DisabledMemoryCache) Get(string) (*handle.Handle, bool) { return nil, false }

func (c *DisabledMemoryCache) GetAndAcquire(string) (*handle.Handle, error) {
	return nil, types.ErrCacheMiss
}

// Put caches nothing. The handle keeps no membership, so its lifecycle is
// driven by active use alone.
func (c *DisabledMemoryCache) Put(string, *handle.Handle) (*handle.Handle, error) { return nil, nil }

func (c *DisabledMemoryCache) Remove(string) *handle.Handle  { return nil }
func (c *DisabledMemoryCache) Contains(string) bool          { return false }
func (c *DisabledMemoryCache) TrimUnused() int               { return 0 }
func (c *DisabledMemoryCache) Clear()                        {}
func (c *DisabledMemoryCache) Stats() types.MemoryCacheStats { return types.MemoryCacheStats{} }
func (c *DisabledMemoryCache) Len() int                      { return 0 }
func (c *DisabledMemoryCache) Size() int64                   { return 0 }
func (c *DisabledMemoryCache) MaxSize() int64                { return 0 }
func (c *DisabledMemoryCache) UsagePercentage() float64      { return 0 }
func (c *DisabledMemoryCache) HitRatio() float64             { return 0 }
func (c *DisabledMemoryCache) Close() error                  { return nil }

// DisabledDiskCache is a no-op disk layer used when the disk tier is off.
type DisabledDiskCache struct{}

func NewDisabledDiskCache() *DisabledDiskCache {
	return &DisabledDiskCache{}
}

func (c *DisabledDiskCache) Name() string      { return "disk-disabled" }
func (c *DisabledDiskCache) IsAvailable() bool { return false }

// Get returns ErrCacheMiss as this cache is disabled.
func (c *DisabledDiskCache) Get(context.Context, string) ([]byte, error) {
	return nil, types.ErrCacheMiss
}

// Put returns ErrDiskUnavailable as this cache is disabled.
func (c *DisabledDiskCache) Put(context.Context, string, io.Reader) error {
	return types.ErrDiskUnavailable
}

func (c *DisabledDiskCache) Remove(context.Context, string) error { return nil }

func (c *DisabledDiskCache) Contains(context.Context, string) (bool, error) { return false, nil }

func (c *DisabledDiskCache) ScheduleFlush()              {}
func (c *DisabledDiskCache) Flush(context.Context) error { return nil }
func (c *DisabledDiskCache) Stats() types.DiskCacheStats { return types.DiskCacheStats{} }
func (c *DisabledDiskCache) LastError() error            { return nil }
func (c *DisabledDiskCache) LastErrorTime() time.Time    { return time.Time{} }
func (c *DisabledDiskCache) SizeBytes() int64            { return 0 }
func (c *DisabledDiskCache) MaxSizeBytes() int64         { return 0 }
func (c *DisabledDiskCache) Close() error                { return nil }

var (
	_ MemoryLayer     = (*MemoryCache)(nil)
	_ MemoryLayer     = (*DisabledMemoryCache)(nil)
	_ types.DiskLayer = (*DisabledDiskCache)(nil)
)
