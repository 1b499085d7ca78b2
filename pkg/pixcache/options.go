package pixcache

import (
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

// ManagerOptions holds the overrides applied by ManagerOption.
type ManagerOptions = types.ManagerOptions

// ManagerOption customizes a Cache at construction.
type ManagerOption func(*ManagerOptions)

func WithLogger(logger Logger) ManagerOption {
	return func(o *ManagerOptions) {
		o.Logger = logger
	}
}

func WithMetrics(metrics MetricsRecorder) ManagerOption {
	return func(o *ManagerOptions) {
		o.Metrics = metrics
	}
}

// WithDecoder replaces the default PNG/JPEG/GIF decoder.
func WithDecoder(decoder Decoder) ManagerOption {
	return func(o *ManagerOptions) {
		o.Decoder = decoder
	}
}

// WithEncoder replaces the default PNG encoder used by Put.
func WithEncoder(encoder Encoder) ManagerOption {
	return func(o *ManagerOptions) {
		o.Encoder = encoder
	}
}

// WithCodec sets both the decoder and the encoder.
func WithCodec(codec *Codec) ManagerOption {
	return func(o *ManagerOptions) {
		o.Decoder = codec
		o.Encoder = codec
	}
}

// WithStore backs the disk tier with st instead of the configured backend.
// The cache takes ownership and closes st on Close.
func WithStore(st Store) ManagerOption {
	return func(o *ManagerOptions) {
		o.Store = st
	}
}

// WithDiskLocation sets the directory of the local disk backend.
func WithDiskLocation(dir string) ManagerOption {
	return func(o *ManagerOptions) {
		o.DiskLocation = dir
	}
}

func WithoutDisk() ManagerOption {
	return func(o *ManagerOptions) {
		o.DisableDisk = true
	}
}

func WithReclaimPolicy(policy Policy) ManagerOption {
	return func(o *ManagerOptions) {
		o.Policy = policy
	}
}

// WithGracePeriod sets how long the lazy policy waits before reclaiming a
// used resource.
func WithGracePeriod(d time.Duration) ManagerOption {
	return func(o *ManagerOptions) {
		o.GracePeriod = d
	}
}

func WithRedisAddress(addr string) ManagerOption {
	return func(o *ManagerOptions) {
		o.RedisAddress = addr
	}
}

func WithRedisPassword(password string) ManagerOption {
	return func(o *ManagerOptions) {
		o.RedisPassword = types.NewSecretString(password)
	}
}

func WithoutResilience() ManagerOption {
	return func(o *ManagerOptions) {
		o.DisableResilience = true
	}
}
