package cache

import (
	"sync/atomic"
	"time"

	"github.com/LavishGent/pixcache/internal/handle"
	"github.com/LavishGent/pixcache/internal/types"
)

// sizedResource is a resource with an arbitrary byte size.
type sizedResource struct {
	w, h     int
	size     int64
	mutable  bool
	reclaims atomic.Int32
}

func (r *sizedResource) Width() int       { return r.w }
func (r *sizedResource) Height() int      { return r.h }
func (r *sizedResource) SizeBytes() int64 { return r.size }
func (r *sizedResource) Mutable() bool    { return r.mutable }
func (r *sizedResource) Reclaim()         { r.reclaims.Add(1) }

func newSized(size int64) *sizedResource {
	return &sizedResource{w: int(size), h: 1, size: size, mutable: true}
}

func newTestHandle(size int64, sched *handle.Scheduler) (*handle.Handle, *sizedResource) {
	res := newSized(size)
	return handle.New(res, types.OriginFresh, sched), res
}

func newTestScheduler(policy types.Policy) *handle.Scheduler {
	return handle.NewScheduler(handle.Config{Policy: policy, GracePeriod: 50 * time.Millisecond})
}
