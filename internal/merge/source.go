package merge

import (
	"context"
	"iter"
)

// Item is an ordering key plus an opaque payload. Items are treated as immutable once a Source
// has produced them.
type Item[K, V any] struct {
	Key   K
	Value V
}

// Source produces Items in non-decreasing key order.
//
// Pull returns ok == false once the source is exhausted, or a non-nil error if the next item could
// not be produced. A Source is never queried concurrently, and the engine calls Pull at most once
// per item it consumes. Close is called exactly once when the engine retires or releases the source.
type Source[K, V any] interface {
	Pull(ctx context.Context) (item Item[K, V], ok bool, err error)
	Close() error
}

// SourceFunc adapts a pull function to a Source with a no-op Close.
type SourceFunc[K, V any] func(ctx context.Context) (Item[K, V], bool, error)

func (f SourceFunc[K, V]) Pull(ctx context.Context) (Item[K, V], bool, error) {
	return f(ctx)
}

func (f SourceFunc[K, V]) Close() error {
	return nil
}

type sliceSource[K, V any] struct {
	items []Item[K, V]
	idx   int
}

// FromSlice returns a Source over items, which must already be in key order.
func FromSlice[K, V any](items []Item[K, V]) Source[K, V] {
	return &sliceSource[K, V]{items: items}
}

func (s *sliceSource[K, V]) Pull(ctx context.Context) (Item[K, V], bool, error) {
	if s.idx >= len(s.items) {
		var zero Item[K, V]
		return zero, false, nil
	}
	item := s.items[s.idx]
	s.idx++
	return item, true, nil
}

func (s *sliceSource[K, V]) Close() error {
	s.items = nil
	return nil
}

type seqSource[K, V any] struct {
	next func() (Item[K, V], error, bool)
	stop func()
}

// FromSeq returns a Source pulling from seq. Close stops the underlying iterator.
func FromSeq[K, V any](seq iter.Seq[Item[K, V]]) Source[K, V] {
	return FromSeq2(func(yield func(Item[K, V], error) bool) {
		for item := range seq {
			if !yield(item, nil) {
				return
			}
		}
	})
}

// FromSeq2 returns a Source pulling from seq. A non-nil error yielded by seq is returned from Pull.
func FromSeq2[K, V any](seq iter.Seq2[Item[K, V], error]) Source[K, V] {
	next, stop := iter.Pull2(seq)
	return &seqSource[K, V]{next: next, stop: stop}
}

func (s *seqSource[K, V]) Pull(ctx context.Context) (Item[K, V], bool, error) {
	if err := ctx.Err(); err != nil {
		var zero Item[K, V]
		return zero, false, err
	}
	item, err, ok := s.next()
	if !ok {
		return item, false, nil
	}
	if err != nil {
		return item, false, err
	}
	return item, true, nil
}

func (s *seqSource[K, V]) Close() error {
	s.stop()
	return nil
}
