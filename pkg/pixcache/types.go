package pixcache

import (
	"image"
	"log/slog"

	"github.com/LavishGent/pixcache/internal/bitmap"
	"github.com/LavishGent/pixcache/internal/handle"
	"github.com/LavishGent/pixcache/internal/metrics"
	"github.com/LavishGent/pixcache/internal/store"
	"github.com/LavishGent/pixcache/internal/types"
)

type (
	// Handle is the reference-counted owner of one cached resource.
	Handle = handle.Handle
	// Resource is a decoded, reclaimable value such as a Bitmap.
	Resource = types.Resource
	// Bitmap is the default Resource.
	Bitmap = bitmap.Bitmap
	// Codec encodes and decodes bitmaps.
	Codec = bitmap.Codec
	// CodecOption configures a Codec.
	CodecOption = bitmap.CodecOption
	// Decoder turns stored bytes into a Resource.
	Decoder = types.Decoder
	// Encoder writes a Resource in the format the Decoder reads.
	Encoder = types.Encoder
	// Store is the persistent key/value contract behind the disk tier.
	Store = store.Store
	// Policy decides when an unreferenced resource is reclaimed.
	Policy = types.Policy
	// Origin records where a handle's resource came from.
	Origin = types.Origin
	// State is a handle's position in its lifecycle.
	State = types.State
	// Shape is the width and height of a resource.
	Shape = types.Shape
	// DecodeOption adjusts a disk load.
	DecodeOption = types.DecodeOption
	// MemoryCacheStats contains statistics about the memory tier.
	MemoryCacheStats = types.MemoryCacheStats
	// DiskCacheStats contains statistics about the disk tier.
	DiskCacheStats = types.DiskCacheStats
	// MetricsRecorder provides operations for recording cache metrics.
	MetricsRecorder = types.MetricsRecorder
	// Logger provides logging operations.
	Logger = types.Logger
	// PublisherHealthMetrics is the summary handed to a Publisher.
	PublisherHealthMetrics = types.PublisherHealthMetrics
)

const (
	PolicyDisabled = types.PolicyDisabled
	PolicyEager    = types.PolicyEager
	PolicyLazy     = types.PolicyLazy
)

const (
	OriginUnknown = types.OriginUnknown
	OriginFresh   = types.OriginFresh
	OriginReused  = types.OriginReused
)

const (
	StateActive         = types.StateActive
	StateUnreferenced   = types.StateUnreferenced
	StatePendingReclaim = types.StatePendingReclaim
	StateReclaimed      = types.StateReclaimed
)

// Codec formats.
const (
	FormatPNG  = bitmap.FormatPNG
	FormatJPEG = bitmap.FormatJPEG
)

// ParsePolicy parses "disabled", "eager" or "lazy".
func ParsePolicy(s string) (Policy, bool) {
	return types.ParsePolicy(s)
}

// NewBitmap allocates a transparent, mutable bitmap.
func NewBitmap(width, height int) *Bitmap {
	return bitmap.New(width, height)
}

// BitmapFromImage copies img into a new mutable bitmap.
func BitmapFromImage(img image.Image) *Bitmap {
	return bitmap.FromImage(img, true)
}

// NewCodec returns a codec encoding in format.
func NewCodec(format string, opts ...CodecOption) (*Codec, error) {
	return bitmap.NewCodec(format, opts...)
}

func WithJPEGQuality(q int) CodecOption {
	return bitmap.WithJPEGQuality(q)
}

// WithImmutableBitmaps makes decoded bitmaps ineligible for reuse.
func WithImmutableBitmaps() CodecOption {
	return bitmap.WithImmutableBitmaps()
}

// WithDisableReuse decodes into a fresh allocation instead of a pooled one.
func WithDisableReuse() DecodeOption {
	return types.WithDisableReuse()
}

// WithSkipPromotion loads from disk without inserting into memory.
func WithSkipPromotion() DecodeOption {
	return types.WithSkipPromotion()
}

// NewTracker returns an in-process metrics recorder. Counters are forwarded
// to publisher when it is non-nil.
func NewTracker(publisher Publisher) MetricsRecorder {
	if publisher == nil {
		return metrics.NewTracker()
	}
	return metrics.NewTracker(metrics.WithPublisher(publisher))
}

// NewLoggingMetrics returns a recorder that logs every metric through logger.
func NewLoggingMetrics(logger *slog.Logger) MetricsRecorder {
	return metrics.NewTracker(metrics.WithPublisher(metrics.NewLoggingPublisher(logger)))
}
