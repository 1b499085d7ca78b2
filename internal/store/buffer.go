package store

import (
	"bytes"
	"fmt"
	"io"
)

// BufferedEditor stages values in memory for stores that write an entry in
// one call. commit receives every value once all have been written and
// closed; release runs exactly once after Commit or Abort.
type BufferedEditor struct {
	values  []*bytes.Buffer
	written []bool
	commit  func(values [][]byte) error
	release func()
	done    bool
}

func NewBufferedEditor(valuesPerEntry int, commit func([][]byte) error, release func()) *BufferedEditor {
	return &BufferedEditor{
		values:  make([]*bytes.Buffer, valuesPerEntry),
		written: make([]bool, valuesPerEntry),
		commit:  commit,
		release: release,
	}
}

func (ed *BufferedEditor) NewWriter(index int) (io.WriteCloser, error) {
	if ed.done {
		return nil, ErrEditorDone
	}
	if index < 0 || index >= len(ed.values) {
		return nil, ErrInvalidIndex
	}
	buf := &bytes.Buffer{}
	ed.values[index] = buf
	ed.written[index] = false
	return &bufferWriter{buf: buf, onClose: func() { ed.written[index] = true }}, nil
}

func (ed *BufferedEditor) Commit() error {
	if ed.done {
		return ErrEditorDone
	}
	ed.done = true
	defer ed.release()

	values := make([][]byte, len(ed.values))
	for i, buf := range ed.values {
		if buf == nil || !ed.written[i] {
			return fmt.Errorf("store: value %d not written", i)
		}
		values[i] = buf.Bytes()
	}
	return ed.commit(values)
}

func (ed *BufferedEditor) Abort() error {
	if ed.done {
		return nil
	}
	ed.done = true
	ed.release()
	return nil
}

type bufferWriter struct {
	buf     *bytes.Buffer
	onClose func()
	closed  bool
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrEditorDone
	}
	return w.buf.Write(p)
}

func (w *bufferWriter) Close() error {
	if !w.closed {
		w.closed = true
		w.onClose()
	}
	return nil
}

// MemorySnapshot serves values already read into memory.
type MemorySnapshot struct {
	values [][]byte
}

func NewMemorySnapshot(values [][]byte) *MemorySnapshot {
	return &MemorySnapshot{values: values}
}

func (sn *MemorySnapshot) Reader(index int) (io.ReadCloser, error) {
	if index < 0 || index >= len(sn.values) {
		return nil, ErrInvalidIndex
	}
	return io.NopCloser(bytes.NewReader(sn.values[index])), nil
}

func (sn *MemorySnapshot) Close() error { return nil }
