package diskstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/LavishGent/pixcache/internal/store"
)

type editor struct {
	s       *Store
	e       *entry
	ctx     context.Context
	written []bool
	writers []*valueWriter
	done    bool
}

// NewWriter creates the staging file for value index. Calling it again for
// the same index starts that value over.
func (ed *editor) NewWriter(index int) (io.WriteCloser, error) {
	if index < 0 || index >= len(ed.written) {
		return nil, fmt.Errorf("%w: %d", store.ErrInvalidIndex, index)
	}
	s := ed.s

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, store.ErrClosed
	case ed.done:
		s.mu.Unlock()
		return nil, store.ErrEditorDone
	}
	if prev := ed.writers[index]; prev != nil {
		_ = prev.Close()
	}
	s.mu.Unlock()

	f, err := s.fs.Create(valueName(ed.e.key, index) + tmpSuffix)
	if err != nil {
		return nil, fmt.Errorf("diskstore: create value: %w", err)
	}

	vw := &valueWriter{file: f, w: f}
	if s.limiter != nil {
		vw.w = &throttledWriter{ctx: ed.ctx, lim: s.limiter, w: f}
	}
	if s.opts.Compression {
		zw, err := newZstdWriter(vw.w, s.opts.CompressionLevel)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("diskstore: zstd writer: %w", err)
		}
		vw.zw = zw
	}

	s.mu.Lock()
	ed.writers[index] = vw
	ed.written[index] = true
	s.mu.Unlock()
	return vw, nil
}

// Commit publishes the staged values. Values not rewritten keep their
// previous contents; a new entry must write all of them.
func (ed *editor) Commit() error {
	closeErr := ed.closeWriters()

	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return store.ErrClosed
	case ed.done:
		return store.ErrEditorDone
	}
	if closeErr != nil {
		ed.abortLocked()
		return fmt.Errorf("diskstore: close value: %w", closeErr)
	}

	e := ed.e
	if !e.readable {
		for i, ok := range ed.written {
			if !ok {
				ed.abortLocked()
				return fmt.Errorf("diskstore: new entry %s has no value %d", e.key, i)
			}
		}
	}

	sizes := make([]int64, len(ed.written))
	for i, ok := range ed.written {
		name := valueName(e.key, i)
		if ok {
			if err := removeIfExists(s.fs, name); err != nil {
				return ed.failLocked(err)
			}
			if err := s.fs.Rename(name+tmpSuffix, name); err != nil {
				return ed.failLocked(err)
			}
		}
		fi, err := s.fs.Stat(name)
		if err != nil {
			return ed.failLocked(err)
		}
		sizes[i] = fi.Size()
	}

	if e.readable {
		s.size -= e.total()
	}
	e.sizes = sizes
	e.readable = true
	e.editor = nil
	ed.done = true
	s.size += e.total()
	s.touch(e)
	s.appendRecord(opClean, e.key, sizes)
	s.trimToSize()
	return nil
}

// Abort discards staged values. It is a no-op after Commit, so it can be
// deferred unconditionally.
func (ed *editor) Abort() error {
	_ = ed.closeWriters()

	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if ed.done {
		return nil
	}
	ed.abortLocked()
	return nil
}

func (ed *editor) closeWriters() error {
	ed.s.mu.Lock()
	writers := append([]*valueWriter(nil), ed.writers...)
	ed.s.mu.Unlock()

	var errs []error
	for _, w := range writers {
		if w != nil {
			errs = append(errs, w.Close())
		}
	}
	return errors.Join(errs...)
}

func (ed *editor) abortLocked() {
	s := ed.s
	e := ed.e
	for i := range ed.written {
		_ = removeIfExists(s.fs, valueName(e.key, i)+tmpSuffix)
	}
	ed.done = true
	e.editor = nil
	if e.readable {
		s.appendRecord(opClean, e.key, e.sizes)
		return
	}
	s.dropEntry(e)
	s.appendRecord(opRemove, e.key, nil)
}

// failLocked handles a commit that may have replaced some values already;
// the entry cannot be trusted and is removed.
func (ed *editor) failLocked(err error) error {
	s := ed.s
	e := ed.e
	ed.done = true
	e.editor = nil
	s.deleteFiles(e.key)
	s.dropEntry(e)
	s.appendRecord(opRemove, e.key, nil)
	return fmt.Errorf("diskstore: commit %s: %w", e.key, err)
}

// discardLocked is used by Close for edits that never finished.
func (ed *editor) discardLocked() {
	for _, w := range ed.writers {
		if w != nil {
			_ = w.Close()
		}
	}
	if !ed.done {
		ed.abortLocked()
	}
}

type valueWriter struct {
	file   billy.File
	w      io.Writer
	zw     *zstd.Encoder
	closed bool
}

func (v *valueWriter) Write(p []byte) (int, error) {
	if v.closed {
		return 0, store.ErrEditorDone
	}
	if v.zw != nil {
		return v.zw.Write(p)
	}
	return v.w.Write(p)
}

func (v *valueWriter) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	var zerr error
	if v.zw != nil {
		zerr = v.zw.Close()
	}
	return errors.Join(zerr, v.file.Close())
}

// throttledWriter spends limiter tokens per byte before writing them.
type throttledWriter struct {
	ctx context.Context
	lim *rate.Limiter
	w   io.Writer
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	written := 0
	burst := t.lim.Burst()
	for len(p) > 0 {
		n := min(len(p), burst)
		if err := t.lim.WaitN(t.ctx, n); err != nil {
			return written, err
		}
		m, err := t.w.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}

type snapshot struct {
	files      []billy.File
	sizes      []int64
	handed     []bool
	compressed bool
}

// Reader returns value index. Each value can be read once per snapshot.
func (sn *snapshot) Reader(index int) (io.ReadCloser, error) {
	if index < 0 || index >= len(sn.files) {
		return nil, fmt.Errorf("%w: %d", store.ErrInvalidIndex, index)
	}
	if sn.handed == nil {
		sn.handed = make([]bool, len(sn.files))
	}
	if sn.handed[index] {
		return nil, fmt.Errorf("diskstore: value %d already opened", index)
	}
	sn.handed[index] = true

	f := sn.files[index]
	if !sn.compressed {
		return f, nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("diskstore: zstd reader: %w", err)
	}
	return &valueReader{file: f, zr: zr}, nil
}

// Length returns the stored (possibly compressed) size of value index.
func (sn *snapshot) Length(index int) int64 {
	if index < 0 || index >= len(sn.sizes) {
		return 0
	}
	return sn.sizes[index]
}

// Close closes values that were never handed out.
func (sn *snapshot) Close() error {
	var errs []error
	for i, f := range sn.files {
		if sn.handed != nil && sn.handed[i] {
			continue
		}
		errs = append(errs, f.Close())
	}
	sn.files = nil
	return errors.Join(errs...)
}

type valueReader struct {
	file billy.File
	zr   *zstd.Decoder
}

func (v *valueReader) Read(p []byte) (int, error) {
	return v.zr.Read(p)
}

func (v *valueReader) Close() error {
	v.zr.Close()
	return v.file.Close()
}
