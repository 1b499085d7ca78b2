package metrics

import (
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

// NoOpTracker discards everything. Used when metrics are disabled.
type NoOpTracker struct{}

func NewNoOpTracker() *NoOpTracker {
	return &NoOpTracker{}
}

func (t *NoOpTracker) RecordHit(string, string, time.Duration)        {}
func (t *NoOpTracker) RecordMiss(string, string, time.Duration)       {}
func (t *NoOpTracker) RecordSet(string, string, int, time.Duration)   {}
func (t *NoOpTracker) RecordDelete(string, string, time.Duration)     {}
func (t *NoOpTracker) RecordError(string, string, error)              {}
func (t *NoOpTracker) RecordEviction(string, int64)                   {}
func (t *NoOpTracker) RecordReclaim(types.Origin)                     {}
func (t *NoOpTracker) RecordFlush(time.Duration, error)               {}
func (t *NoOpTracker) RecordCircuitBreakerStateChange(string, string) {}

// Snapshot returns an empty snapshot.
func (t *NoOpTracker) Snapshot() types.MetricsSnapshot { return types.MetricsSnapshot{} }

func (t *NoOpTracker) Reset() {}

// NoOpPublisher is a Publisher that does nothing.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Gauge(string, float64, ...string)                   {}
func (p *NoOpPublisher) Incr(string, ...string)                             {}
func (p *NoOpPublisher) Count(string, int64, ...string)                     {}
func (p *NoOpPublisher) Histogram(string, float64, ...string)               {}
func (p *NoOpPublisher) Timing(string, time.Duration, ...string)            {}
func (p *NoOpPublisher) Event(string, string, string, ...string)            {}
func (p *NoOpPublisher) PublishHealthMetrics(*types.PublisherHealthMetrics) {}
func (p *NoOpPublisher) Close() error                                       { return nil }

var (
	_ types.MetricsRecorder = (*NoOpTracker)(nil)
	_ types.Publisher       = (*NoOpPublisher)(nil)
)
