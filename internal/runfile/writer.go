package runfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Writer appends records to a run. Keys must be written in non-decreasing order.
type Writer struct {
	w       io.Writer
	hash    *xxhash.Digest
	buf     []byte
	prevKey []byte
	count   uint64
	closed  bool
}

// NewWriter writes the run header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := io.WriteString(w, magic); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write([]byte{version}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &Writer{
		w:    w,
		hash: xxhash.New(),
		buf:  make([]byte, 0, 1024),
	}, nil
}

// Write appends a record. It returns ErrUnsorted if key sorts before the previous key.
func (w *Writer) Write(key, value []byte) error {
	if w.closed {
		return fmt.Errorf("write record: writer closed")
	}
	if len(key) > maxKeySize || len(key)+len(value) > MaxRecordSize {
		return fmt.Errorf("write record of %d+%d bytes: %w", len(key), len(value), ErrRecordTooLarge)
	}
	if w.count > 0 && Compare(key, w.prevKey) < 0 {
		return fmt.Errorf("key %q after %q: %w", key, w.prevKey, ErrUnsorted)
	}

	size := 4 + 2 + len(key) + len(value)
	if cap(w.buf) < size {
		w.buf = make([]byte, 0, max(size, cap(w.buf)*2))
	}
	buf := w.buf[:size]
	binary.BigEndian.PutUint32(buf[0:4], uint32(2+len(key)+len(value)))
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(key)))
	copy(buf[6:], key)
	copy(buf[6+len(key):], value)

	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.hash.Write(buf)
	w.prevKey = append(w.prevKey[:0], key...)
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() uint64 {
	return w.count
}

// Close writes the trailer. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var trailer [20]byte
	binary.BigEndian.PutUint32(trailer[0:4], trailerMarker)
	binary.BigEndian.PutUint64(trailer[4:12], w.count)
	binary.BigEndian.PutUint64(trailer[12:20], w.hash.Sum64())
	if _, err := w.w.Write(trailer[:]); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return nil
}
