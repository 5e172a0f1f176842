package buffers

import (
	"errors"
	"io"
)

// readerCloseForwarder runs closers in order on the first Close.
type readerCloseForwarder struct {
	closers []func() error
	closed  bool
	io.Reader
}

func (c *readerCloseForwarder) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return runClosers(c.closers)
}

type writerCloseForwarder struct {
	closers []func() error
	closed  bool
	io.WriteCloser
}

func (c *writerCloseForwarder) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return runClosers(c.closers)
}

func runClosers(closers []func() error) error {
	var errs []error
	for _, closer := range closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
