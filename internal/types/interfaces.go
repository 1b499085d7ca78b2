package types

import (
	"context"
	"io"
	"time"
)

// Resource is a sized, expensive-to-produce value such as a decoded image.
// Reclaim releases its backing storage; it is called at most once.
type Resource interface {
	Width() int
	Height() int
	SizeBytes() int64
	Mutable() bool
	Reclaim()
}

// Decoder turns stored bytes back into a Resource.
type Decoder interface {
	// DecodeBounds reports the dimensions without decoding pixel data.
	DecodeBounds(data []byte) (width, height int, err error)
	// Decode decodes data. When reuse is non-nil and compatible the decoder
	// writes into it and returns it; otherwise it allocates.
	Decode(data []byte, reuse Resource) (Resource, error)
}

// Encoder writes a Resource in the format the Decoder reads.
type Encoder interface {
	Encode(w io.Writer, res Resource) error
}

type CacheInfo interface {
	Name() string
	IsAvailable() bool
}

// DiskLayer is the persistent tier as seen by the manager.
type DiskLayer interface {
	CacheInfo
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, src io.Reader) error
	Remove(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) (bool, error)
	ScheduleFlush()
	Flush(ctx context.Context) error
	Stats() DiskCacheStats
	// LastError returns the most recent store failure, or nil.
	LastError() error
	LastErrorTime() time.Time
	SizeBytes() int64
	MaxSizeBytes() int64
	Close() error
}

type MetricsRecorder interface {
	RecordHit(layer string, key string, latency time.Duration)
	RecordMiss(layer string, key string, latency time.Duration)
	RecordSet(layer string, key string, size int, latency time.Duration)
	RecordDelete(layer string, key string, latency time.Duration)
	RecordError(layer string, operation string, err error)
	RecordEviction(layer string, size int64)
	RecordReclaim(origin Origin)
	RecordFlush(latency time.Duration, err error)
	RecordCircuitBreakerStateChange(from, to string)
}

// Publisher pushes metrics to an external sink.
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

type PublisherHealthMetrics struct {
	MemoryUsedBytes       int64
	MemoryLimitBytes      int64
	MemoryUsagePercentage float64
	TotalEntries          int64
	DiskBackend           string
	DiskUsedBytes         int64
	DiskLimitBytes        int64
	HitRatio              float64
	AverageLatencyMs      float64
	Reclaims              int64
	DiskAvailable         bool
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
