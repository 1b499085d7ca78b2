// Package store defines the persistent key/value contract the disk tier
// drives. Keys reaching a Store are already hashed to a restricted alphabet.
// Each entry holds a fixed number of opaque values addressed by index.
package store

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned by Get and Remove when no committed entry exists.
	ErrNotFound = errors.New("store: entry not found")
	// ErrEditInProgress is returned by Edit when another editor holds the key.
	ErrEditInProgress = errors.New("store: edit already in progress")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store: closed")
	// ErrInvalidIndex is returned for a value index outside the entry.
	ErrInvalidIndex = errors.New("store: value index out of range")
	// ErrEditorDone is returned when an editor is used after Commit or Abort.
	ErrEditorDone = errors.New("store: editor already committed or aborted")
)

// Store is a journaled, size-bounded key/value store.
type Store interface {
	// Edit starts an atomic write of key. Nothing is visible to Get until
	// Commit returns nil.
	Edit(ctx context.Context, key string) (Editor, error)
	// Get opens a consistent read view of key.
	Get(ctx context.Context, key string) (Snapshot, error)
	Remove(ctx context.Context, key string) error
	// Flush makes committed state durable.
	Flush(ctx context.Context) error
	Size() int64
	MaxSize() int64
	Close() error
}

// Editor stages the values of a single entry.
type Editor interface {
	NewWriter(index int) (io.WriteCloser, error)
	Commit() error
	Abort() error
}

// Snapshot is a read view of one committed entry.
type Snapshot interface {
	Reader(index int) (io.ReadCloser, error)
	Close() error
}

// Named is implemented by stores that report a backend name for health output.
type Named interface {
	Name() string
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IsNotFound reports whether err means the entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ReadAll opens value index of a snapshot and reads it fully.
func ReadAll(snap Snapshot, index int) ([]byte, error) {
	r, err := snap.Reader(index)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
