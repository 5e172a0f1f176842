package merge

import "context"

// SourceState is the lifecycle state of a registered source.
type SourceState int

const (
	SourceActive SourceState = iota
	SourceExhausted
	SourceFailed
)

func (s SourceState) String() string {
	switch s {
	case SourceActive:
		return "active"
	case SourceExhausted:
		return "exhausted"
	case SourceFailed:
		return "failed"
	}
	return "unknown"
}

// cursor binds a source to its pulled but not yet emitted front item.
type cursor[K, V any] struct {
	id      int
	current Item[K, V]
	src     Source[K, V]
	state   SourceState

	// index is the position in the frontier heap, -1 when not in the heap.
	index  int
	closed bool
}

func newCursor[K, V any](id int, src Source[K, V]) *cursor[K, V] {
	return &cursor[K, V]{id: id, src: src, index: -1}
}

func (c *cursor[K, V]) peek() Item[K, V] {
	return c.current
}

// advance replaces current with the next item from the source. It returns false once the source
// is exhausted.
func (c *cursor[K, V]) advance(ctx context.Context) (bool, error) {
	item, ok, err := c.src.Pull(ctx)
	if err != nil {
		c.state = SourceFailed
		return false, err
	}
	if !ok {
		c.state = SourceExhausted
		return false, nil
	}
	c.current = item
	return true, nil
}

func (c *cursor[K, V]) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.current = Item[K, V]{}
	return c.src.Close()
}
