package merge

import (
	"container/heap"
	"fmt"
)

// frontier is a min-heap holding at most one cursor per active source.
type frontier[K, V any] struct {
	h       cursorHeap[K, V]
	maxSize int
}

func newFrontier[K, V any](ordering Ordering[K], capacity int) *frontier[K, V] {
	return &frontier[K, V]{
		h: cursorHeap[K, V]{
			ordering: ordering,
			cursors:  make([]*cursor[K, V], 0, capacity),
		},
	}
}

func (f *frontier[K, V]) insert(c *cursor[K, V]) {
	if c.index >= 0 {
		panic(fmt.Sprintf("merge: source %d inserted into frontier twice", c.id))
	}
	heap.Push(&f.h, c)
	f.maxSize = max(f.maxSize, len(f.h.cursors))
}

func (f *frontier[K, V]) peekMin() *cursor[K, V] {
	if len(f.h.cursors) == 0 {
		return nil
	}
	return f.h.cursors[0]
}

func (f *frontier[K, V]) popMin() *cursor[K, V] {
	if len(f.h.cursors) == 0 {
		return nil
	}
	return heap.Pop(&f.h).(*cursor[K, V])
}

func (f *frontier[K, V]) isEmpty() bool {
	return len(f.h.cursors) == 0
}

func (f *frontier[K, V]) len() int {
	return len(f.h.cursors)
}

// drain removes and returns every cursor in the frontier in no particular order.
func (f *frontier[K, V]) drain() []*cursor[K, V] {
	cursors := f.h.cursors
	for _, c := range cursors {
		c.index = -1
	}
	f.h.cursors = nil
	return cursors
}

type cursorHeap[K, V any] struct {
	ordering Ordering[K]
	cursors  []*cursor[K, V]
}

func (h cursorHeap[K, V]) Len() int { return len(h.cursors) }

func (h cursorHeap[K, V]) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	return h.ordering.Less(a.current.Key, a.id, b.current.Key, b.id)
}

func (h cursorHeap[K, V]) Swap(i, j int) {
	h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i]
	h.cursors[i].index = i
	h.cursors[j].index = j
}

func (h *cursorHeap[K, V]) Push(x any) {
	c := x.(*cursor[K, V])
	c.index = len(h.cursors)
	h.cursors = append(h.cursors, c)
}

func (h *cursorHeap[K, V]) Pop() any {
	old := h.cursors
	n := len(old)
	c := old[n-1]
	old[n-1] = nil // avoid memory leak
	c.index = -1
	h.cursors = old[0 : n-1]
	return c
}
