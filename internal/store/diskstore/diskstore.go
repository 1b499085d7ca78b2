// Package diskstore is a journaled, size-bounded LRU store on a billy
// filesystem. Each entry is a fixed number of value files; edits are staged
// in temporary files and renamed into place on commit. The journal is a CBOR
// record stream replayed on open.
package diskstore

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/LavishGent/pixcache/internal/store"
)

const (
	// Name is reported through store.Named.
	Name = "local"

	defaultCompactThreshold = 2000
	tmpSuffix               = ".tmp"
)

var validKey = regexp.MustCompile(`^[a-z0-9_-]{1,120}$`)

// ErrInvalidKey is returned for keys outside [a-z0-9_-]{1,120}.
var ErrInvalidKey = errors.New("diskstore: invalid key")

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
	// SchemaVersion invalidates the whole store when it changes.
	SchemaVersion  int
	ValuesPerEntry int
	MaxSizeBytes   int64
	// Compression stores values zstd-compressed. Changing it invalidates the store.
	Compression      bool
	CompressionLevel int
	// WriteBytesPerSec throttles value writes; zero disables throttling.
	WriteBytesPerSec int64
	// CompactThreshold is the number of redundant journal records that
	// triggers a rewrite on Flush.
	CompactThreshold int
}

type entry struct {
	key      string
	sizes    []int64
	editor   *editor
	elem     *list.Element
	readable bool
}

func (e *entry) total() int64 {
	var n int64
	for _, s := range e.sizes {
		n += s
	}
	return n
}

// Store implements store.Store.
type Store struct {
	fs      billy.Filesystem
	logger  *slog.Logger
	limiter *rate.Limiter
	journal *journalWriter
	entries map[string]*entry
	lru     *list.List // front is most recently used
	header  journalHeader
	opts    Options

	size      int64
	redundant int
	closed    bool
	mu        sync.Mutex
}

// Open opens or creates a store under dir. An unreadable or mismatched
// journal discards the previous contents.
func Open(fs billy.Filesystem, dir string, opts Options) (*Store, error) {
	if opts.ValuesPerEntry <= 0 {
		opts.ValuesPerEntry = 1
	}
	if opts.MaxSizeBytes <= 0 {
		return nil, fmt.Errorf("diskstore: max size must be positive, got %d", opts.MaxSizeBytes)
	}
	if opts.CompactThreshold <= 0 {
		opts.CompactThreshold = defaultCompactThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskstore: create %s: %w", dir, err)
	}
	root, err := fs.Chroot(dir)
	if err != nil {
		return nil, fmt.Errorf("diskstore: chroot %s: %w", dir, err)
	}

	s := &Store{
		fs:      root,
		logger:  opts.Logger.With("component", "diskstore", "dir", dir),
		entries: make(map[string]*entry),
		lru:     list.New(),
		opts:    opts,
		header: journalHeader{
			Magic:          journalMagic,
			Version:        journalVersion,
			SchemaVersion:  opts.SchemaVersion,
			ValuesPerEntry: opts.ValuesPerEntry,
			Compressed:     opts.Compression,
		},
	}
	if opts.WriteBytesPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.WriteBytesPerSec), int(opts.WriteBytesPerSec))
	}

	if err := s.replay(); err != nil {
		s.logger.Warn("Discarding disk store contents", "error", err)
		if err := s.wipe(); err != nil {
			return nil, err
		}
	}
	if err := s.rebuildJournal(); err != nil {
		return nil, err
	}
	s.trimToSize()

	s.logger.Info("Disk store opened",
		"entries", len(s.entries),
		"size_bytes", s.size,
		"max_size_bytes", opts.MaxSizeBytes,
		"compression", opts.Compression,
	)
	return s, nil
}

func (s *Store) replay() error {
	f, err := s.fs.Open(journalFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	records := 0
	truncated, err := readJournal(f, s.header, func(rec journalRecord) {
		records++
		s.applyRecord(rec)
	})
	if err != nil {
		return err
	}
	if truncated {
		s.logger.Warn("Journal ends with a torn record")
	}

	// Interrupted edits leave the entry in an unknown state.
	for key, e := range s.entries {
		if e.editor == nil && e.readable {
			continue
		}
		s.deleteFiles(key)
		s.dropEntry(e)
	}
	s.removeStrayFiles()
	s.redundant = records - len(s.entries)
	return nil
}

func (s *Store) applyRecord(rec journalRecord) {
	e := s.entries[rec.Key]
	switch rec.Op {
	case opDirty:
		if e == nil {
			e = &entry{key: rec.Key}
			s.entries[rec.Key] = e
		}
		// Marker only; replay never resumes an edit.
		e.editor = &editor{}
	case opClean:
		if e == nil {
			e = &entry{key: rec.Key}
			s.entries[rec.Key] = e
		}
		if len(rec.Sizes) != s.opts.ValuesPerEntry {
			s.deleteFiles(rec.Key)
			s.dropEntry(e)
			return
		}
		e.editor = nil
		s.size -= e.total()
		e.sizes = rec.Sizes
		s.size += e.total()
		e.readable = true
		s.touch(e)
	case opRead:
		if e != nil && e.readable {
			s.touch(e)
		}
	case opRemove:
		if e != nil {
			s.dropEntry(e)
		}
	}
}

func (s *Store) removeStrayFiles() {
	infos, err := s.fs.ReadDir(".")
	if err != nil {
		return
	}
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || name == journalFile {
			continue
		}
		key, _, ok := parseValueName(name)
		if !ok || strings.HasSuffix(name, tmpSuffix) || s.entries[key] == nil {
			_ = s.fs.Remove(name)
		}
	}
}

func (s *Store) wipe() error {
	s.entries = make(map[string]*entry)
	s.lru.Init()
	s.size = 0
	infos, err := s.fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("diskstore: list: %w", err)
	}
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		if err := s.fs.Remove(fi.Name()); err != nil {
			return fmt.Errorf("diskstore: wipe %s: %w", fi.Name(), err)
		}
	}
	return nil
}

// rebuildJournal writes a compact journal and reopens it for appending.
// Callers hold s.mu or have exclusive access.
func (s *Store) rebuildJournal() error {
	if s.journal != nil {
		_ = s.journal.close()
		s.journal = nil
	}

	records := make([]journalRecord, 0, len(s.entries))
	for el := s.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		records = append(records, journalRecord{Op: opClean, Key: e.key, Sizes: e.sizes})
	}
	for _, e := range s.entries {
		if e.editor != nil {
			records = append(records, journalRecord{Op: opDirty, Key: e.key})
		}
	}
	if err := writeJournal(s.fs, s.header, records); err != nil {
		return fmt.Errorf("diskstore: write journal: %w", err)
	}

	f, err := s.fs.OpenFile(journalFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("diskstore: open journal: %w", err)
	}
	s.journal = newJournalWriter(f)
	s.redundant = 0
	return nil
}

func (s *Store) appendRecord(op recordOp, key string, sizes []int64) {
	if err := s.journal.append(op, key, sizes); err != nil {
		s.logger.Error("Failed to append journal record", "op", op.String(), "key", key, "error", err)
	}
	if op != opDirty {
		s.redundant++
	}
}

func (s *Store) Name() string {
	return Name
}

// Edit starts an edit of key.
func (s *Store) Edit(ctx context.Context, key string) (store.Editor, error) {
	if !validKey.MatchString(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	e := s.entries[key]
	if e == nil {
		e = &entry{key: key}
		s.entries[key] = e
	} else if e.editor != nil {
		return nil, store.ErrEditInProgress
	}

	ed := &editor{
		s:       s,
		e:       e,
		ctx:     ctx,
		written: make([]bool, s.opts.ValuesPerEntry),
		writers: make([]*valueWriter, s.opts.ValuesPerEntry),
	}
	e.editor = ed
	s.appendRecord(opDirty, key, nil)
	// A dirty record must be durable before value files appear.
	if err := s.journal.flush(); err != nil {
		s.logger.Warn("Failed to flush journal", "error", err)
	}
	return ed, nil
}

// Get opens every value of a committed entry.
func (s *Store) Get(ctx context.Context, key string) (store.Snapshot, error) {
	if !validKey.MatchString(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	e := s.entries[key]
	if e == nil || !e.readable {
		return nil, store.ErrNotFound
	}

	files := make([]billy.File, 0, len(e.sizes))
	for i := range e.sizes {
		f, err := s.fs.Open(valueName(key, i))
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			if errors.Is(err, os.ErrNotExist) {
				// Someone deleted the file behind our back.
				s.removeLocked(e)
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		files = append(files, f)
	}

	s.touch(e)
	s.appendRecord(opRead, key, nil)
	return &snapshot{files: files, compressed: s.opts.Compression, sizes: append([]int64(nil), e.sizes...)}, nil
}

// Remove deletes a committed entry. It fails while the entry is being edited.
func (s *Store) Remove(ctx context.Context, key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	e := s.entries[key]
	if e == nil || !e.readable {
		return store.ErrNotFound
	}
	if e.editor != nil {
		return store.ErrEditInProgress
	}
	s.removeLocked(e)
	return nil
}

func (s *Store) removeLocked(e *entry) {
	if e.editor != nil {
		// Keep the entry for the pending edit but drop the committed values.
		if e.elem != nil {
			s.lru.Remove(e.elem)
			e.elem = nil
		}
		s.size -= e.total()
		e.readable = false
		e.sizes = nil
		for i := 0; i < s.opts.ValuesPerEntry; i++ {
			_ = removeIfExists(s.fs, valueName(e.key, i))
		}
		s.appendRecord(opRemove, e.key, nil)
		s.appendRecord(opDirty, e.key, nil)
		return
	}
	s.deleteFiles(e.key)
	s.dropEntry(e)
	s.appendRecord(opRemove, e.key, nil)
}

// Flush writes buffered journal records and compacts the journal once it
// has accumulated enough redundant records.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	s.trimToSize()
	if s.redundant >= s.opts.CompactThreshold && s.redundant >= len(s.entries) {
		return s.rebuildJournal()
	}
	return s.journal.flush()
}

func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Store) MaxSize() int64 {
	return s.opts.MaxSizeBytes
}

// Len returns the number of committed entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Close aborts in-flight edits and closes the journal.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for _, e := range s.entries {
		if e.editor != nil {
			e.editor.discardLocked()
		}
	}
	s.trimToSize()
	return s.journal.close()
}

func (s *Store) touch(e *entry) {
	if e.elem == nil {
		e.elem = s.lru.PushFront(e)
		return
	}
	s.lru.MoveToFront(e.elem)
}

func (s *Store) dropEntry(e *entry) {
	if e.elem != nil {
		s.lru.Remove(e.elem)
		e.elem = nil
	}
	if e.readable {
		s.size -= e.total()
	}
	e.readable = false
	e.sizes = nil
	delete(s.entries, e.key)
}

func (s *Store) trimToSize() {
	for s.size > s.opts.MaxSizeBytes {
		el := s.lru.Back()
		if el == nil {
			return
		}
		e := el.Value.(*entry)
		s.logger.Debug("Evicting entry", "key", e.key, "size_bytes", e.total())
		s.removeLocked(e)
	}
}

func (s *Store) deleteFiles(key string) {
	for i := 0; i < s.opts.ValuesPerEntry; i++ {
		if err := removeIfExists(s.fs, valueName(key, i)); err != nil {
			s.logger.Warn("Failed to delete value file", "key", key, "index", i, "error", err)
		}
		_ = removeIfExists(s.fs, valueName(key, i)+tmpSuffix)
	}
}

func valueName(key string, index int) string {
	return key + "." + strconv.Itoa(index)
}

func parseValueName(name string) (key string, index int, ok bool) {
	name = strings.TrimSuffix(name, tmpSuffix)
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(name[dot+1:])
	if err != nil {
		return "", 0, false
	}
	return name[:dot], index, true
}

func removeIfExists(fs billy.Filesystem, name string) error {
	err := fs.Remove(name)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func newZstdWriter(w io.Writer, level int) (*zstd.Encoder, error) {
	if level <= 0 {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	}
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
}

var _ store.Store = (*Store)(nil)
