// Package pool keeps weak references to evicted handles so that a decode of
// the same shape can reuse their allocation. It is best effort: an entry may
// disappear at any time and a miss is never an error.
package pool

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/LavishGent/pixcache/internal/handle"
	"github.com/LavishGent/pixcache/internal/types"
)

// DefaultMaxEntries bounds the pool when no limit is configured.
const DefaultMaxEntries = 32

type entry struct {
	ref   weak.Pointer[handle.Handle]
	shape types.Shape
}

// Pool is safe for concurrent use.
type Pool struct {
	logger     *slog.Logger
	entries    []entry
	maxEntries int
	mu         sync.Mutex

	offered atomic.Int64
	claimed atomic.Int64
}

// New creates a pool holding at most maxEntries weak entries.
func New(maxEntries int, logger *slog.Logger) *Pool {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		logger:     logger.With("component", "reuse-pool"),
		maxEntries: maxEntries,
	}
}

// Offer adds h if it is mutable and still valid. The oldest entry is
// dropped when the pool is full.
func (p *Pool) Offer(h *handle.Handle) bool {
	if h == nil || !h.IsMutable() || !h.IsValid() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) >= p.maxEntries {
		p.entries = p.entries[1:]
	}
	p.entries = append(p.entries, entry{ref: weak.Make(h), shape: h.Shape()})
	p.offered.Add(1)
	return true
}

// Claim returns the resource of the first pooled handle with exactly the
// given shape. Entries whose handle is gone or invalid are purged on the way.
// Handles that are referenced again are skipped and kept.
func (p *Pool) Claim(width, height int) (types.Resource, bool) {
	want := types.Shape{Width: width, Height: height}

	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.entries[:0]
	var (
		found types.Resource
		ok    bool
	)
	for _, e := range p.entries {
		h := e.ref.Value()
		if h == nil || !h.IsValid() {
			continue
		}
		if !ok && e.shape == want {
			if res, surrendered := h.Surrender(); surrendered {
				found, ok = res, true
				continue
			}
		}
		kept = append(kept, e)
	}
	clear(p.entries[len(kept):])
	p.entries = kept

	if ok {
		p.claimed.Add(1)
		p.logger.Debug("Reusing pooled allocation", "width", width, "height", height)
	}
	return found, ok
}

// Len returns the number of entries, including ones not yet purged.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Clear drops every entry.
func (p *Pool) Clear() {
	p.mu.Lock()
	clear(p.entries)
	p.entries = p.entries[:0]
	p.mu.Unlock()
}

func (p *Pool) Stats() types.PoolHealthMetrics {
	return types.PoolHealthMetrics{
		Entries: p.Len(),
		Offered: p.offered.Load(),
		Claimed: p.claimed.Load(),
	}
}
