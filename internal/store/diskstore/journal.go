package diskstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-git/go-billy/v5"
)

const (
	journalFile    = "journal"
	journalTmpFile = "journal.tmp"
	journalMagic   = "pixcache.diskstore"
	journalVersion = 1
)

type recordOp uint8

const (
	opDirty recordOp = iota + 1
	opClean
	opRemove
	opRead
)

func (o recordOp) String() string {
	switch o {
	case opDirty:
		return "dirty"
	case opClean:
		return "clean"
	case opRemove:
		return "remove"
	case opRead:
		return "read"
	default:
		return "unknown"
	}
}

type journalHeader struct {
	Magic          string `cbor:"1,keyasint"`
	Version        int    `cbor:"2,keyasint"`
	SchemaVersion  int    `cbor:"3,keyasint"`
	ValuesPerEntry int    `cbor:"4,keyasint"`
	Compressed     bool   `cbor:"5,keyasint"`
}

type journalRecord struct {
	Op    recordOp `cbor:"1,keyasint"`
	Key   string   `cbor:"2,keyasint"`
	Sizes []int64  `cbor:"3,keyasint,omitempty"`
}

var errJournalMismatch = errors.New("diskstore: journal header mismatch")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// journalWriter appends CBOR records to the open journal file.
type journalWriter struct {
	file billy.File
	buf  *bufio.Writer
	enc  *cbor.Encoder
}

func newJournalWriter(f billy.File) *journalWriter {
	buf := bufio.NewWriter(f)
	return &journalWriter{file: f, buf: buf, enc: encMode.NewEncoder(buf)}
}

func (w *journalWriter) append(op recordOp, key string, sizes []int64) error {
	return w.enc.Encode(journalRecord{Op: op, Key: key, Sizes: sizes})
}

func (w *journalWriter) flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if s, ok := w.file.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (w *journalWriter) close() error {
	return errors.Join(w.buf.Flush(), w.file.Close())
}

// readJournal checks the header and hands every record to apply. A torn
// trailing record is reported through the truncated result, not an error.
func readJournal(r io.Reader, want journalHeader, apply func(journalRecord)) (truncated bool, err error) {
	dec := decMode.NewDecoder(bufio.NewReader(r))

	var hdr journalHeader
	if err := dec.Decode(&hdr); err != nil {
		return false, fmt.Errorf("diskstore: read journal header: %w", err)
	}
	if hdr != want {
		return false, fmt.Errorf("%w: got %+v, want %+v", errJournalMismatch, hdr, want)
	}

	for {
		var rec journalRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return true, nil
		}
		apply(rec)
	}
}

func writeJournal(fs billy.Filesystem, hdr journalHeader, records []journalRecord) error {
	f, err := fs.Create(journalTmpFile)
	if err != nil {
		return err
	}
	w := newJournalWriter(f)
	if err := w.enc.Encode(hdr); err != nil {
		_ = w.close()
		return err
	}
	for _, rec := range records {
		if err := w.enc.Encode(rec); err != nil {
			_ = w.close()
			return err
		}
	}
	if err := w.flush(); err != nil {
		_ = w.close()
		return err
	}
	if err := w.close(); err != nil {
		return err
	}
	if err := removeIfExists(fs, journalFile); err != nil {
		return err
	}
	return fs.Rename(journalTmpFile, journalFile)
}
