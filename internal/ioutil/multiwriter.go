package ioutil

import (
	"io"

	"golang.org/x/sync/errgroup"
)

// ParallelMultiWriter creates a writer that writes to multiple writers in parallel.
// Each writer is fed through its own pipe and goroutine. Writes are buffered in a 64KB buffer
// to reduce the number of writes to each writer.
//
// Close must be called to flush, wait for every writer and release resources. It returns the
// first error any writer reported.
func ParallelMultiWriter(writers ...io.Writer) io.WriteCloser {
	if len(writers) == 0 {
		return WithWriterCloser(io.Discard, NopCloser)
	}
	if len(writers) == 1 {
		return WithWriterCloser(writers[0], NopCloser)
	}

	var eg errgroup.Group
	var pipeWriters []io.Writer
	var closers []io.Closer

	for _, w := range writers {
		pr, pw := io.Pipe()
		pipeWriters = append(pipeWriters, pw)
		closers = append(closers, pw)
		eg.Go(func() error {
			buffer := make([]byte, DefaultBufioSize) // will exactly match WithBufferedWrites buffer size
			_, err := io.CopyBuffer(w, pr, buffer)
			// unblock writers still feeding this pipe
			pr.CloseWithError(err)
			return err
		})
	}

	multiwriter := WithBufferedWrites(io.MultiWriter(pipeWriters...))
	closers = append([]io.Closer{multiwriter}, closers...)
	closers = append(closers, CloserFunc(eg.Wait))
	return WithWriterCloser(multiwriter, NewMultiCloser(closers...))
}
