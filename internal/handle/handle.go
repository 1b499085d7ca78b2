// Package handle implements reference-counted ownership of a cached resource.
//
// A Handle tracks two independent counts: how many cache tiers hold it and
// how many consumers are actively using it. When both reach zero the
// Scheduler's policy decides whether and when the resource is destructively
// reclaimed. Reclamation happens at most once, and once it has happened
// every accessor returns types.ErrReclaimed.
package handle

import (
	"sync"
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

// Handle wraps exactly one resource.
type Handle struct {
	created time.Time
	sched   *Scheduler

	// resMu guards res against Surrender and the destructive Reclaim call.
	resMu sync.RWMutex
	res   types.Resource

	size    int64
	width   int
	height  int
	mutable bool
	origin  types.Origin

	mu         sync.Mutex
	state      types.State
	cacheRefs  int
	activeUses int
	everUsed   bool
	// inUse counts Use calls in flight. A reclaim that finds it nonzero is
	// left to the last Use to finish.
	inUse           int
	reclaimDeferred bool
	timer           *time.Timer
	// gen invalidates grace callbacks that lost a race with Stop.
	gen uint64
}

// New wraps res. The handle is not evaluated for reclamation until one of
// its counts changes, so a freshly decoded resource survives until it is
// cached or used.
func New(res types.Resource, origin types.Origin, sched *Scheduler) *Handle {
	if sched == nil {
		sched = NewScheduler(Config{})
	}
	return &Handle{
		created: time.Now(),
		sched:   sched,
		res:     res,
		size:    res.SizeBytes(),
		width:   res.Width(),
		height:  res.Height(),
		mutable: res.Mutable(),
		origin:  origin,
		state:   types.StateActive,
	}
}

func (h *Handle) SizeBytes() int64      { return h.size }
func (h *Handle) Width() int            { return h.width }
func (h *Handle) Height() int           { return h.height }
func (h *Handle) Shape() types.Shape    { return types.Shape{Width: h.width, Height: h.height} }
func (h *Handle) Origin() types.Origin  { return h.origin }
func (h *Handle) CreatedAt() time.Time  { return h.created }
func (h *Handle) IsMutable() bool       { return h.mutable }
func (h *Handle) Scheduler() *Scheduler { return h.sched }

// IsValid reports whether the resource has not been reclaimed.
func (h *Handle) IsValid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state != types.StateReclaimed
}

func (h *Handle) State() types.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) CacheRefCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cacheRefs
}

func (h *Handle) ActiveUseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeUses
}

func (h *Handle) EverActivelyUsed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.everUsed
}

// Resource returns the wrapped resource, or ErrReclaimed. The caller should
// hold an active use for as long as it touches the result.
func (h *Handle) Resource() (types.Resource, error) {
	h.resMu.RLock()
	defer h.resMu.RUnlock()
	if h.res == nil {
		return nil, types.ErrReclaimed
	}
	return h.res, nil
}

// Use runs fn with the resource while holding off reclamation. fn may call
// Release or SetCached on h; a reclaim they trigger runs after fn returns.
func (h *Handle) Use(fn func(types.Resource) error) error {
	h.mu.Lock()
	if h.state == types.StateReclaimed {
		h.mu.Unlock()
		return types.ErrReclaimed
	}
	h.inUse++
	h.mu.Unlock()

	h.resMu.RLock()
	res := h.res
	h.resMu.RUnlock()

	err := types.ErrReclaimed
	if res != nil {
		err = fn(res)
	}

	h.mu.Lock()
	h.inUse--
	run := h.inUse == 0 && h.reclaimDeferred
	if run {
		h.reclaimDeferred = false
	}
	h.mu.Unlock()

	if run {
		h.reclaim()
	}
	return err
}

// Acquire records one active use.
func (h *Handle) Acquire() error {
	h.mu.Lock()
	if h.state == types.StateReclaimed {
		h.mu.Unlock()
		return types.ErrReclaimed
	}
	h.activeUses++
	h.everUsed = true
	reclaim := h.evaluateLocked()
	h.mu.Unlock()

	if reclaim {
		h.reclaim()
	}
	return nil
}

// Release drops one active use. Releasing more than was acquired is ignored.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.activeUses == 0 {
		h.mu.Unlock()
		h.sched.logger.Warn("Release without matching Acquire", "width", h.width, "height", h.height)
		return
	}
	h.activeUses--
	reclaim := h.evaluateLocked()
	h.mu.Unlock()

	if reclaim {
		h.reclaim()
	}
}

// SetCached adds or drops one cache membership. Adding membership to a
// reclaimed handle fails with ErrReclaimed.
func (h *Handle) SetCached(cached bool) error {
	h.mu.Lock()
	if cached {
		if h.state == types.StateReclaimed {
			h.mu.Unlock()
			return types.ErrReclaimed
		}
		h.cacheRefs++
	} else {
		if h.cacheRefs == 0 {
			h.mu.Unlock()
			return nil
		}
		h.cacheRefs--
	}
	reclaim := h.evaluateLocked()
	h.mu.Unlock()

	if reclaim {
		h.reclaim()
	}
	return nil
}

// Surrender gives up the resource without reclaiming it, so another handle
// can reuse the allocation. It only succeeds while nothing references the
// handle; afterwards the handle is reclaimed.
func (h *Handle) Surrender() (types.Resource, bool) {
	h.mu.Lock()
	if h.state == types.StateReclaimed || h.cacheRefs > 0 || h.activeUses > 0 || h.inUse > 0 {
		h.mu.Unlock()
		return nil, false
	}
	h.cancelLocked()
	h.state = types.StateReclaimed
	h.mu.Unlock()

	h.resMu.Lock()
	res := h.res
	h.res = nil
	h.resMu.Unlock()
	return res, res != nil
}

// evaluateLocked applies the policy after a count change and reports whether
// the caller must reclaim once it has released h.mu.
func (h *Handle) evaluateLocked() bool {
	switch h.state {
	case types.StateReclaimed:
		return false
	case types.StatePendingReclaim:
		if h.cacheRefs > 0 || h.activeUses > 0 {
			h.cancelLocked()
			h.state = types.StateActive
		}
		return false
	}

	if h.cacheRefs > 0 || h.activeUses > 0 {
		h.state = types.StateActive
		return false
	}

	h.state = types.StateUnreferenced
	switch h.sched.policy {
	case types.PolicyEager:
		h.state = types.StateReclaimed
		return true
	case types.PolicyLazy:
		if !h.everUsed {
			h.state = types.StateReclaimed
			return true
		}
		h.state = types.StatePendingReclaim
		h.gen++
		gen := h.gen
		h.timer = h.sched.schedule(func() { h.graceExpired(gen) })
	}
	return false
}

func (h *Handle) cancelLocked() {
	h.gen++
	if h.timer != nil {
		h.sched.unschedule(h.timer)
		h.timer = nil
	}
}

func (h *Handle) graceExpired(gen uint64) {
	h.mu.Lock()
	h.sched.fired()
	if gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	if h.state != types.StatePendingReclaim || h.cacheRefs > 0 || h.activeUses > 0 {
		h.mu.Unlock()
		return
	}
	h.state = types.StateReclaimed
	h.mu.Unlock()

	h.reclaim()
}

// reclaim runs the destructive action. Callers have already moved the state
// to StateReclaimed under h.mu, which is what makes this run once and keeps
// new Use calls out.
func (h *Handle) reclaim() {
	h.mu.Lock()
	if h.inUse > 0 {
		h.reclaimDeferred = true
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	h.resMu.Lock()
	res := h.res
	h.res = nil
	h.resMu.Unlock()

	if res == nil {
		return
	}
	res.Reclaim()
	h.sched.didReclaim(h.origin)
	h.sched.logger.Debug("Resource reclaimed",
		"width", h.width,
		"height", h.height,
		"size_bytes", h.size,
		"origin", h.origin.String(),
	)
}
