package runfile

import (
	"context"

	"github.com/garethgeorge/kmerge/internal/merge"
)

// LazySource returns a source that calls open on its first pull. An open failure is returned
// from that pull, so the merge error policy applies to it like any read error.
func LazySource(open func(ctx context.Context) (*Reader, error)) merge.Source[[]byte, []byte] {
	return &lazySource{open: open}
}

type lazySource struct {
	open   func(ctx context.Context) (*Reader, error)
	reader *Reader
	closed bool
}

func (s *lazySource) Pull(ctx context.Context) (merge.Item[[]byte, []byte], bool, error) {
	if s.closed {
		return merge.Item[[]byte, []byte]{}, false, nil
	}
	if s.reader == nil {
		rd, err := s.open(ctx)
		if err != nil {
			return merge.Item[[]byte, []byte]{}, false, err
		}
		s.reader = rd
	}
	return s.reader.Pull(ctx)
}

func (s *lazySource) Close() error {
	s.closed = true
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}
