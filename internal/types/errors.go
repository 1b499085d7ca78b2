package types

import (
	"errors"
	"fmt"
)

var (
	ErrCacheMiss        = errors.New("cache: key not found")
	ErrClosed           = errors.New("cache: manager closed")
	ErrInvalidKey       = errors.New("cache: invalid key")
	ErrReclaimed        = errors.New("cache: resource has been reclaimed")
	ErrLockTimeout      = errors.New("cache: timed out waiting for disk entry lock")
	ErrDecodeFailed     = errors.New("cache: decode failed")
	ErrEncodeFailed     = errors.New("cache: encode failed")
	ErrEntryTooLarge    = errors.New("cache: entry exceeds maximum size")
	ErrDiskUnavailable  = errors.New("cache: disk cache unavailable")
	ErrBulkheadFull     = errors.New("cache: bulkhead at capacity")
	ErrBulkheadTimeout  = errors.New("cache: bulkhead timeout")
	ErrCircuitOpen      = errors.New("cache: disk store circuit open")
	ErrShutdownTimeout  = errors.New("cache: shutdown timeout waiting for background operations")
	ErrResourceRequired = errors.New("cache: resource must not be nil")
)

type CacheError struct {
	Op    string
	Key   string
	Layer string
	Err   error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Layer, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Layer, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, layer string, err error) *CacheError {
	return &CacheError{
		Op:    op,
		Key:   key,
		Layer: layer,
		Err:   err,
	}
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsReclaimed(err error) bool {
	return errors.Is(err, ErrReclaimed)
}

func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// A missing entry will still be missing on the next attempt
	if IsCacheMiss(err) {
		return false
	}

	switch {
	case errors.Is(err, ErrClosed),
		errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrReclaimed),
		errors.Is(err, ErrDecodeFailed),
		errors.Is(err, ErrEncodeFailed),
		errors.Is(err, ErrEntryTooLarge),
		errors.Is(err, ErrLockTimeout):
		return false
	}

	// I/O and transport errors
	return true
}
