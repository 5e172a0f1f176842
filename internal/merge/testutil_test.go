package merge

import (
	"cmp"
	"context"
	"errors"
	"fmt"
)

var errBroken = errors.New("broken source")

// errorReporter is the part of testing.TB that *rapid.T also provides.
type errorReporter interface {
	Errorf(format string, args ...any)
}

// testSource is a slice backed source that records how it is used.
type testSource struct {
	t      errorReporter
	keys   []int
	idx    int
	failAt int // pull number (1-based) that fails, 0 to never fail

	pulls      int
	closed     bool
	closeCount int
	closeErr   error
}

func newTestSource(t errorReporter, keys ...int) *testSource {
	return &testSource{t: t, keys: keys}
}

func (s *testSource) Pull(ctx context.Context) (Item[int, string], bool, error) {
	if s.closed {
		s.t.Errorf("pull after close")
	}
	s.pulls++
	if s.failAt > 0 && s.pulls == s.failAt {
		return Item[int, string]{}, false, errBroken
	}
	if s.idx >= len(s.keys) {
		return Item[int, string]{}, false, nil
	}
	key := s.keys[s.idx]
	s.idx++
	return Item[int, string]{Key: key, Value: fmt.Sprintf("%p/%d", s, s.idx-1)}, true, nil
}

func (s *testSource) Close() error {
	s.closed = true
	s.closeCount++
	return s.closeErr
}

func sourcesOf(srcs ...*testSource) []Source[int, string] {
	out := make([]Source[int, string], len(srcs))
	for i, s := range srcs {
		out[i] = s
	}
	return out
}

// labeled returns a source whose payloads name the source and position, for tie-break checks.
func labeled(label string, keys ...int) Source[int, string] {
	items := make([]Item[int, string], len(keys))
	for i, k := range keys {
		items[i] = Item[int, string]{Key: k, Value: fmt.Sprintf("%s%d", label, i)}
	}
	return FromSlice(items)
}

func collect[K, V any](e *Engine[K, V]) ([]Item[K, V], error) {
	var items []Item[K, V]
	for item, err := range e.All(context.Background()) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

func keysOf[K, V any](items []Item[K, V]) []K {
	if len(items) == 0 {
		return nil
	}
	keys := make([]K, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return keys
}

func valuesOf[K, V any](items []Item[K, V]) []V {
	if len(items) == 0 {
		return nil
	}
	values := make([]V, len(items))
	for i, item := range items {
		values[i] = item.Value
	}
	return values
}

var intCompare = cmp.Compare[int]
