// Package types provides shared types for the pixcache library.
// This package breaks import cycles between pkg/pixcache and internal/cache.
package types

import "time"

// Layer names used in errors, logs and metrics.
const (
	LayerMemory = "memory"
	LayerDisk   = "disk"
)

// Policy decides what happens to a resource once nothing references it.
type Policy int

const (
	// PolicyDisabled never reclaims; the garbage collector owns the resource.
	PolicyDisabled Policy = iota + 1
	// PolicyEager reclaims as soon as both reference counts reach zero.
	PolicyEager
	// PolicyLazy reclaims never-used resources at once and delays the rest
	// by a grace period.
	PolicyLazy
)

func (p Policy) String() string {
	switch p {
	case PolicyDisabled:
		return "disabled"
	case PolicyEager:
		return "eager"
	case PolicyLazy:
		return "lazy"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a policy name as written in configuration.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "disabled":
		return PolicyDisabled, true
	case "eager":
		return PolicyEager, true
	case "lazy", "":
		return PolicyLazy, true
	default:
		return 0, false
	}
}

// Origin records where a handle's resource came from.
type Origin int

const (
	OriginUnknown Origin = iota
	OriginFresh
	OriginReused
)

func (o Origin) String() string {
	switch o {
	case OriginFresh:
		return "fresh"
	case OriginReused:
		return "reused"
	default:
		return "unknown"
	}
}

// State is the reclamation state of a handle.
type State int

const (
	StateActive State = iota
	StateUnreferenced
	StatePendingReclaim
	StateReclaimed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateUnreferenced:
		return "unreferenced"
	case StatePendingReclaim:
		return "pending-reclaim"
	case StateReclaimed:
		return "reclaimed"
	default:
		return "unknown"
	}
}

// Shape is the pixel dimensions used to match reusable buffers.
type Shape struct {
	Width  int
	Height int
}

type MemoryCacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
	Rejected  int64
}

type DiskCacheStats struct {
	Hits          int64
	Misses        int64
	Writes        int64
	WriteErrors   int64
	Removes       int64
	Flushes       int64
	FlushErrors   int64
	LockTimeouts  int64
	LastFlushTime time.Time
}
