// Package bigcachestore is a volatile store.Store on bigcache. Nothing
// survives a restart; it backs the disk tier in memory-only deployments and
// tests. Entries are CBOR envelopes holding all values of an entry.
package bigcachestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/fxamacker/cbor/v2"

	"github.com/LavishGent/pixcache/internal/store"
)

// Name is reported through store.Named.
const Name = "bigcache"

const mb = 1024 * 1024

// Options configures a Store.
type Options struct {
	Logger         *slog.Logger
	ValuesPerEntry int
	MaxSizeBytes   int64
	// LifeWindow expires entries; zero keeps them until evicted for space.
	LifeWindow time.Duration
	Shards     int
}

type envelope struct {
	Values [][]byte `cbor:"1,keyasint"`
}

func (e envelope) size() int64 {
	var n int64
	for _, v := range e.Values {
		n += int64(len(v))
	}
	return n
}

// Store implements store.Store on bigcache.
type Store struct {
	cache  *bigcache.BigCache
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	editing map[string]struct{}

	size   atomic.Int64
	closed atomic.Bool
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ValuesPerEntry <= 0 {
		opts.ValuesPerEntry = 1
	}
	if opts.Shards <= 0 {
		opts.Shards = 16
	}
	life := opts.LifeWindow
	if life <= 0 {
		life = 100 * 365 * 24 * time.Hour
	}

	s := &Store{
		opts:    opts,
		logger:  opts.Logger.With("component", "bigcachestore"),
		editing: make(map[string]struct{}),
	}

	cfg := bigcache.Config{
		Shards:             opts.Shards,
		LifeWindow:         life,
		CleanWindow:        0,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       16 * 1024,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: s.logger},
		OnRemoveWithReason: s.onRemove,
	}
	if opts.MaxSizeBytes > 0 {
		cfg.HardMaxCacheSize = int((opts.MaxSizeBytes + mb - 1) / mb)
	}

	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bigcachestore: %w", err)
	}
	s.cache = cache
	return s, nil
}

// onRemove accounts for entries bigcache drops on its own. Explicit deletes
// are accounted by the caller.
func (s *Store) onRemove(_ string, entry []byte, reason bigcache.RemoveReason) {
	if reason == bigcache.Deleted {
		return
	}
	var env envelope
	if err := cbor.Unmarshal(entry, &env); err == nil {
		s.size.Add(-env.size())
	}
}

func (s *Store) Name() string { return Name }

func (s *Store) Edit(_ context.Context, key string) (store.Editor, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.editing[key]; busy {
		return nil, store.ErrEditInProgress
	}
	s.editing[key] = struct{}{}

	commit := func(values [][]byte) error { return s.commit(key, values) }
	release := func() {
		s.mu.Lock()
		delete(s.editing, key)
		s.mu.Unlock()
	}
	return store.NewBufferedEditor(s.opts.ValuesPerEntry, commit, release), nil
}

func (s *Store) commit(key string, values [][]byte) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	env := envelope{Values: values}
	data, err := cbor.Marshal(env)
	if err != nil {
		return fmt.Errorf("bigcachestore: encode %s: %w", key, err)
	}

	old, _ := s.lookup(key)
	if err := s.cache.Set(key, data); err != nil {
		return fmt.Errorf("bigcachestore: set %s: %w", key, err)
	}
	s.size.Add(env.size() - old.size())
	return nil
}

func (s *Store) lookup(key string) (envelope, error) {
	var env envelope
	data, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return env, store.ErrNotFound
		}
		return env, err
	}
	if err := cbor.Unmarshal(data, &env); err != nil {
		return env, err
	}
	return env, nil
}

func (s *Store) Get(_ context.Context, key string) (store.Snapshot, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	env, err := s.lookup(key)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, err
		}
		s.logger.Warn("dropping unreadable entry", "key", key, "error", err)
		_ = s.cache.Delete(key)
		return nil, store.ErrNotFound
	}
	if len(env.Values) != s.opts.ValuesPerEntry {
		_ = s.cache.Delete(key)
		s.size.Add(-env.size())
		return nil, store.ErrNotFound
	}
	return store.NewMemorySnapshot(env.Values), nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	s.mu.Lock()
	_, busy := s.editing[key]
	s.mu.Unlock()
	if busy {
		return store.ErrEditInProgress
	}

	old, _ := s.lookup(key)
	if err := s.cache.Delete(key); err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("bigcachestore: remove %s: %w", key, err)
	}
	s.size.Add(-old.size())
	return nil
}

// Flush has nothing to persist.
func (s *Store) Flush(context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Size() int64    { return s.size.Load() }
func (s *Store) MaxSize() int64 { return s.opts.MaxSizeBytes }

// Len returns the number of entries.
func (s *Store) Len() int { return s.cache.Len() }

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.cache.Close()
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("bigcache: "+format, args...))
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Named = (*Store)(nil)
)
