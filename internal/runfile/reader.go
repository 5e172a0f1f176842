package runfile

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/garethgeorge/kmerge/internal/merge"
)

// Reader reads a run one record per Pull. It verifies the record count and checksum when it
// reaches the trailer.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	hash   *xxhash.Digest
	buf    []byte
	count  uint64
	done   bool
}

var _ merge.Source[[]byte, []byte] = (*Reader)(nil)

// NewReader reads the run header from r. Close closes r if it is an io.Closer.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{
		r:    bufio.NewReaderSize(r, 32*1024),
		hash: xxhash.New(),
		buf:  make([]byte, 0, 1024),
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}

	var header [headerSize]byte
	if _, err := io.ReadFull(rd.r, header[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", ErrBadHeader)
	}
	if string(header[:len(magic)]) != magic {
		return nil, ErrBadHeader
	}
	if header[len(magic)] != version {
		return nil, fmt.Errorf("unsupported run version %d: %w", header[len(magic)], ErrBadHeader)
	}
	return rd, nil
}

// Pull returns the next record. The returned key and value are owned by the caller.
func (rd *Reader) Pull(ctx context.Context) (merge.Item[[]byte, []byte], bool, error) {
	var zero merge.Item[[]byte, []byte]
	if rd.done {
		return zero, false, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(rd.r, lenBuf[:]); err != nil {
		return zero, false, truncated(err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == trailerMarker {
		return zero, false, rd.readTrailer()
	}
	if length < 2 || length > MaxRecordSize+2 {
		return zero, false, fmt.Errorf("record %d has length %d: %w", rd.count, length, ErrRecordTooLarge)
	}

	if cap(rd.buf) < int(length) {
		rd.buf = make([]byte, max(int(length), cap(rd.buf)*2))
	}
	buf := rd.buf[:length]
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return zero, false, truncated(err)
	}
	rd.hash.Write(lenBuf[:])
	rd.hash.Write(buf)

	keyLen := int(binary.BigEndian.Uint16(buf[0:2]))
	if 2+keyLen > len(buf) {
		return zero, false, fmt.Errorf("record %d key length %d exceeds record: %w", rd.count, keyLen, ErrTruncated)
	}
	// one allocation for key and value, the scratch buffer is reused
	data := make([]byte, len(buf)-2)
	copy(data, buf[2:])
	rd.count++
	return merge.Item[[]byte, []byte]{Key: data[:keyLen:keyLen], Value: data[keyLen:]}, true, nil
}

func (rd *Reader) readTrailer() error {
	var trailer [16]byte
	if _, err := io.ReadFull(rd.r, trailer[:]); err != nil {
		return truncated(err)
	}
	count := binary.BigEndian.Uint64(trailer[0:8])
	sum := binary.BigEndian.Uint64(trailer[8:16])
	if count != rd.count {
		return fmt.Errorf("trailer records %d, read %d: %w", count, rd.count, ErrChecksumMismatch)
	}
	if sum != rd.hash.Sum64() {
		return fmt.Errorf("trailer checksum %x, computed %x: %w", sum, rd.hash.Sum64(), ErrChecksumMismatch)
	}
	rd.done = true
	return nil
}

// Count returns the number of records read so far.
func (rd *Reader) Count() uint64 {
	return rd.count
}

func (rd *Reader) Close() error {
	if rd.closer == nil {
		return nil
	}
	closer := rd.closer
	rd.closer = nil
	return closer.Close()
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
