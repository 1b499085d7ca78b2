package resilience

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/LavishGent/pixcache/internal/store"
	"github.com/LavishGent/pixcache/internal/types"
)

var (
	ErrCircuitOpen     = types.ErrCircuitOpen
	ErrBulkheadFull    = types.ErrBulkheadFull
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// IsCircuitOpen returns true if the error is a circuit open error.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// IsBulkheadError returns true if the error is a bulkhead error.
func IsBulkheadError(err error) bool {
	return errors.Is(err, types.ErrBulkheadFull) || errors.Is(err, types.ErrBulkheadTimeout)
}

// IsRetryable determines if a store error is transient and worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsCircuitOpen(err) || IsBulkheadError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Answers from a healthy store.
	switch {
	case store.IsNotFound(err),
		errors.Is(err, store.ErrEditInProgress),
		errors.Is(err, store.ErrClosed),
		errors.Is(err, store.ErrInvalidIndex),
		errors.Is(err, store.ErrEditorDone):
		return false
	}

	// Checked before net.Error, which syscall.Errno also satisfies.
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return types.IsRetryable(err)
}

// tripsCircuit reports whether err says something about store health.
// A miss or a busy key is a normal answer and must not open the circuit.
func tripsCircuit(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case store.IsNotFound(err),
		errors.Is(err, store.ErrEditInProgress),
		errors.Is(err, store.ErrInvalidIndex),
		errors.Is(err, store.ErrEditorDone),
		errors.Is(err, context.Canceled),
		types.IsCacheMiss(err),
		errors.Is(err, types.ErrInvalidKey),
		errors.Is(err, types.ErrEntryTooLarge),
		errors.Is(err, types.ErrDecodeFailed),
		errors.Is(err, types.ErrEncodeFailed):
		return false
	}
	return true
}
