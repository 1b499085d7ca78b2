package types

import (
	"time"

	"github.com/LavishGent/pixcache/internal/store"
)

// DecodeOptions controls how a disk entry is turned back into a resource.
type DecodeOptions struct {
	// DisableReuse skips the reuse pool and always allocates.
	DisableReuse bool
	// SkipPromotion decodes without inserting the result into memory.
	SkipPromotion bool
}

// DecodeOption is a functional option for decode operations.
type DecodeOption func(*DecodeOptions)

// ApplyDecodeOptions applies functional options to create DecodeOptions.
func ApplyDecodeOptions(opts ...DecodeOption) *DecodeOptions {
	options := &DecodeOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithDisableReuse decodes into a fresh allocation.
func WithDisableReuse() DecodeOption {
	return func(o *DecodeOptions) { o.DisableReuse = true }
}

// WithSkipPromotion leaves the memory tier untouched.
func WithSkipPromotion() DecodeOption {
	return func(o *DecodeOptions) { o.SkipPromotion = true }
}

// ManagerOptions holds configuration for the cache manager.
type ManagerOptions struct {
	// Logger is the structured logger to use.
	Logger Logger

	// Metrics is the metrics recorder.
	Metrics MetricsRecorder

	// Decoder turns disk bytes into resources. Required for disk reads.
	Decoder Decoder

	// Encoder turns resources into disk bytes. Required for Put with a disk tier.
	Encoder Encoder

	// Store replaces the store built from config.
	Store store.Store

	// DiskLocation overrides the disk location from config.
	DiskLocation string

	// Policy overrides the reclaim policy from config.
	Policy Policy

	// GracePeriod overrides the lazy reclaim grace period from config.
	GracePeriod time.Duration

	// RedisAddress overrides the Redis address from config.
	RedisAddress string

	// RedisPassword overrides the Redis password from config.
	// Uses SecretString to prevent accidental logging of sensitive values.
	RedisPassword SecretString

	// DisableDisk disables the disk layer entirely.
	DisableDisk bool

	// DisableResilience disables retry and bulkhead around store I/O.
	DisableResilience bool
}
