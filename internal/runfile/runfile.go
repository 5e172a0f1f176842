// Package runfile reads and writes runs: sorted sequences of key/value records with a checksum
// trailer.
//
// Layout:
//
//	header  "KRUN" version(1 byte)
//	record  length(u32 BE) keyLen(u16 BE) key value     repeated, length covers keyLen+key+value
//	trailer 0xFFFFFFFF count(u64 BE) xxhash64(u64 BE)   hash of every record byte
package runfile

import (
	"bytes"
	"errors"
)

const (
	magic   = "KRUN"
	version = 1

	headerSize    = len(magic) + 1
	trailerMarker = 0xFFFFFFFF
	maxKeySize    = 1<<16 - 1
	// MaxRecordSize bounds key plus value length.
	MaxRecordSize = 64 << 20
)

var (
	ErrUnsorted         = errors.New("run keys out of order")
	ErrRecordTooLarge   = errors.New("run record too large")
	ErrBadHeader        = errors.New("not a run file")
	ErrTruncated        = errors.New("run truncated")
	ErrChecksumMismatch = errors.New("run checksum mismatch")
)

// Compare orders run keys.
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}
