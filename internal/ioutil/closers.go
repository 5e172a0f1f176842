package ioutil

import (
	"errors"
	"io"
)

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error {
	return f()
}

// NopCloser is a closer that does nothing.
var NopCloser io.Closer = CloserFunc(func() error { return nil })

// WithWriterCloser attaches closer to w.
func WithWriterCloser(w io.Writer, closer io.Closer) io.WriteCloser {
	return &writeCloser{
		Writer: w,
		closer: closer,
	}
}

type writeCloser struct {
	io.Writer
	closer io.Closer
}

var _ io.WriteCloser = (*writeCloser)(nil)

func (wc *writeCloser) Close() error {
	return wc.closer.Close()
}

// WithReaderCloser attaches closer to r.
func WithReaderCloser(r io.Reader, closer io.Closer) io.ReadCloser {
	return &readCloser{
		Reader: r,
		closer: closer,
	}
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

var _ io.ReadCloser = (*readCloser)(nil)

func (rc *readCloser) Close() error {
	return rc.closer.Close()
}

// NewMultiCloser returns a closer that closes every closer in order, once, and joins their errors.
func NewMultiCloser(closers ...io.Closer) io.Closer {
	return &multiCloser{closers: closers}
}

type multiCloser struct {
	closers []io.Closer
	closed  bool
}

func (m *multiCloser) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
