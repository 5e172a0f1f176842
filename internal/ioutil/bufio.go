package ioutil

import (
	"bufio"
	"io"
)

const DefaultBufioSize = 64 * 1024 // 64KB

// WithBufferedWrites buffers writes to w. Close flushes the buffer but does not close w.
func WithBufferedWrites(w io.Writer) io.WriteCloser {
	bufw := bufio.NewWriterSize(w, DefaultBufioSize)
	return WithWriterCloser(bufw, CloserFunc(bufw.Flush))
}

func WithBufferedReads(r io.Reader) io.Reader {
	return bufio.NewReaderSize(r, DefaultBufioSize)
}
