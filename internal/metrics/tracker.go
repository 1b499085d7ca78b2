// Package metrics collects cache counters and pushes them to a Publisher.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

const defaultLatencySamples = 10000

// Tracker counts cache events in process. When a Publisher is attached every
// event is also forwarded to it as a tagged counter or timing.
type Tracker struct {
	publisher types.Publisher

	memoryHits   atomic.Int64
	memoryMisses atomic.Int64
	diskHits     atomic.Int64
	diskMisses   atomic.Int64

	getCount    atomic.Int64
	setCount    atomic.Int64
	deleteCount atomic.Int64
	errorCount  atomic.Int64

	evictions      atomic.Int64
	evictedBytes   atomic.Int64
	reclaims       atomic.Int64
	reusedReclaims atomic.Int64
	flushes        atomic.Int64
	flushErrors    atomic.Int64
	bytesWritten   atomic.Int64
	cbStateChanges atomic.Int64

	latencyMu    sync.RWMutex
	latencies    []time.Duration
	latencyIndex int
	latencyCount int
}

type TrackerOption func(*Tracker)

// WithPublisher forwards every recorded event to p.
func WithPublisher(p types.Publisher) TrackerOption {
	return func(t *Tracker) { t.publisher = p }
}

// WithLatencySamples sets how many recent latencies feed the percentiles.
func WithLatencySamples(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.latencies = make([]time.Duration, n)
		}
	}
}

func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{latencies: make([]time.Duration, defaultLatencySamples)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) RecordHit(layer string, _ string, latency time.Duration) {
	switch layer {
	case types.LayerMemory:
		t.memoryHits.Add(1)
	case types.LayerDisk:
		t.diskHits.Add(1)
	}
	t.getCount.Add(1)
	t.recordLatency(latency)

	if t.publisher != nil {
		t.publisher.Incr("cache.get", LayerTag(layer), StatusTag("hit"))
		t.publisher.Timing("cache.get.latency", latency, LayerTag(layer))
	}
}

func (t *Tracker) RecordMiss(layer string, _ string, latency time.Duration) {
	switch layer {
	case types.LayerMemory:
		t.memoryMisses.Add(1)
	case types.LayerDisk:
		t.diskMisses.Add(1)
	}
	t.getCount.Add(1)
	t.recordLatency(latency)

	if t.publisher != nil {
		t.publisher.Incr("cache.get", LayerTag(layer), StatusTag("miss"))
	}
}

func (t *Tracker) RecordSet(layer string, _ string, size int, latency time.Duration) {
	t.setCount.Add(1)
	t.bytesWritten.Add(int64(size))
	t.recordLatency(latency)

	if t.publisher != nil {
		t.publisher.Incr("cache.set", LayerTag(layer))
		t.publisher.Histogram("cache.set.bytes", float64(size), LayerTag(layer))
		t.publisher.Timing("cache.set.latency", latency, LayerTag(layer))
	}
}

// RecordDelete records a delete operation.
func (t *Tracker) RecordDelete(layer string, _ string, latency time.Duration) {
	t.deleteCount.Add(1)
	t.recordLatency(latency)

	if t.publisher != nil {
		t.publisher.Incr("cache.delete", LayerTag(layer))
	}
}

// RecordError records an error.
func (t *Tracker) RecordError(layer string, operation string, _ error) {
	t.errorCount.Add(1)

	if t.publisher != nil {
		t.publisher.Incr("cache.error", LayerTag(layer), OperationTag(operation))
	}
}

// RecordEviction records a capacity eviction of size bytes.
func (t *Tracker) RecordEviction(layer string, size int64) {
	t.evictions.Add(1)
	t.evictedBytes.Add(size)

	if t.publisher != nil {
		t.publisher.Incr("cache.eviction", LayerTag(layer))
	}
}

// RecordReclaim records a resource released back to the allocator.
func (t *Tracker) RecordReclaim(origin types.Origin) {
	t.reclaims.Add(1)
	if origin == types.OriginReused {
		t.reusedReclaims.Add(1)
	}

	if t.publisher != nil {
		t.publisher.Incr("resource.reclaim", OriginTag(origin.String()))
	}
}

// RecordFlush records a disk flush and its outcome.
func (t *Tracker) RecordFlush(latency time.Duration, err error) {
	t.flushes.Add(1)
	status := "ok"
	if err != nil {
		t.flushErrors.Add(1)
		status = "error"
	}

	if t.publisher != nil {
		t.publisher.Timing("disk.flush.latency", latency, StatusTag(status))
	}
}

// RecordCircuitBreakerStateChange records circuit breaker state transitions.
func (t *Tracker) RecordCircuitBreakerStateChange(from, to string) {
	t.cbStateChanges.Add(1)

	if t.publisher != nil {
		t.publisher.Event("disk store circuit "+to,
			"circuit moved from "+from+" to "+to,
			alertTypeFor(to), CircuitStateTag(to))
	}
}

func alertTypeFor(state string) string {
	switch state {
	case "open":
		return "error"
	case "half-open":
		return "warning"
	default:
		return "success"
	}
}

// recordLatency stores a sample in the ring buffer.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencies[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencies)
	if t.latencyCount < len(t.latencies) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

// samples returns the buffered latencies oldest first.
func (t *Tracker) samples() []time.Duration {
	t.latencyMu.RLock()
	defer t.latencyMu.RUnlock()

	out := make([]time.Duration, t.latencyCount)
	if t.latencyCount < len(t.latencies) {
		copy(out, t.latencies[:t.latencyCount])
		return out
	}
	n := copy(out, t.latencies[t.latencyIndex:])
	copy(out[n:], t.latencies[:t.latencyIndex])
	return out
}

// Snapshot returns current metrics snapshot.
func (t *Tracker) Snapshot() types.MetricsSnapshot {
	snap := types.MetricsSnapshot{
		Timestamp:           time.Now(),
		MemoryHits:          t.memoryHits.Load(),
		MemoryMisses:        t.memoryMisses.Load(),
		DiskHits:            t.diskHits.Load(),
		DiskMisses:          t.diskMisses.Load(),
		GetCount:            t.getCount.Load(),
		SetCount:            t.setCount.Load(),
		DeleteCount:         t.deleteCount.Load(),
		ErrorCount:          t.errorCount.Load(),
		Evictions:           t.evictions.Load(),
		EvictedBytes:        t.evictedBytes.Load(),
		Reclaims:            t.reclaims.Load(),
		ReusedReclaims:      t.reusedReclaims.Load(),
		Flushes:             t.flushes.Load(),
		FlushErrors:         t.flushErrors.Load(),
		BytesWritten:        t.bytesWritten.Load(),
		CircuitStateChanges: t.cbStateChanges.Load(),
	}

	if lat := t.samples(); len(lat) > 0 {
		slices.Sort(lat)
		snap.AvgLatencyMs = ms(avgDuration(lat))
		snap.P50LatencyMs = ms(percentile(lat, 50))
		snap.P95LatencyMs = ms(percentile(lat, 95))
		snap.P99LatencyMs = ms(percentile(lat, 99))
	}
	return snap
}

// Reset clears all metrics.
func (t *Tracker) Reset() {
	for _, c := range []*atomic.Int64{
		&t.memoryHits, &t.memoryMisses, &t.diskHits, &t.diskMisses,
		&t.getCount, &t.setCount, &t.deleteCount, &t.errorCount,
		&t.evictions, &t.evictedBytes, &t.reclaims, &t.reusedReclaims,
		&t.flushes, &t.flushErrors, &t.bytesWritten, &t.cbStateChanges,
	} {
		c.Store(0)
	}

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[(len(sorted)-1)*p/100]
}

var _ types.MetricsRecorder = (*Tracker)(nil)
