package pixcache

import (
	"errors"

	"github.com/LavishGent/pixcache/internal/types"
)

// CacheError represents a cache operation error.
type CacheError = types.CacheError

var (
	// ErrCacheMiss indicates that a requested key was not found in either tier.
	ErrCacheMiss = types.ErrCacheMiss
	// ErrClosed indicates that the cache has been closed.
	ErrClosed = types.ErrClosed
	// ErrInvalidKey indicates that a cache key is invalid.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrReclaimed indicates access to a resource that has been reclaimed.
	ErrReclaimed = types.ErrReclaimed
	// ErrLockTimeout indicates that a disk write waited too long for its key.
	ErrLockTimeout = types.ErrLockTimeout
	// ErrDecodeFailed indicates that stored or streamed bytes could not be decoded.
	ErrDecodeFailed = types.ErrDecodeFailed
	// ErrEncodeFailed indicates that a resource could not be encoded for disk.
	ErrEncodeFailed = types.ErrEncodeFailed
	// ErrEntryTooLarge indicates an entry over the memory budget or disk entry limit.
	ErrEntryTooLarge = types.ErrEntryTooLarge
	// ErrDiskUnavailable indicates that the disk tier is disabled.
	ErrDiskUnavailable = types.ErrDiskUnavailable
	// ErrCircuitOpen indicates that the disk store circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrBulkheadFull indicates that the bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that the bulkhead acquisition timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
	// ErrShutdownTimeout indicates that Close gave up waiting for background work.
	ErrShutdownTimeout = types.ErrShutdownTimeout
)

// NewCacheError creates a new cache error with operation, key, layer, and underlying error.
func NewCacheError(op, key, layer string, err error) *CacheError {
	return types.NewCacheError(op, key, layer, err)
}

// IsCacheMiss returns true if the error is a cache miss.
func IsCacheMiss(err error) bool {
	return types.IsCacheMiss(err)
}

// IsReclaimed returns true if the error reports a reclaimed resource.
func IsReclaimed(err error) bool {
	return types.IsReclaimed(err)
}

func IsLockTimeout(err error) bool {
	return types.IsLockTimeout(err)
}

func IsInvalidKey(err error) bool {
	return types.IsInvalidKey(err)
}

// IsCircuitOpen returns true if the error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
