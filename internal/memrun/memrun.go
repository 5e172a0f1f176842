// Package memrun holds records in memory, sorted as they are inserted, and serves them as a
// merge source or flushes them to a run file.
package memrun

import (
	"context"
	"io"
	"iter"

	"github.com/garethgeorge/kmerge/internal/merge"
	"github.com/garethgeorge/kmerge/internal/runfile"
	"github.com/google/btree"
)

type entry[K, V any] struct {
	key   K
	seq   uint64
	value V
}

// Table is an in-memory sorted table. Records may be put in any order; equal keys keep their
// insertion order. Table is not safe for concurrent use.
type Table[K, V any] struct {
	tree *btree.BTreeG[entry[K, V]]
	seq  uint64
}

func New[K, V any](compare func(a, b K) int) *Table[K, V] {
	return &Table[K, V]{
		tree: btree.NewG(32, func(a, b entry[K, V]) bool {
			if c := compare(a.key, b.key); c != 0 {
				return c < 0
			}
			return a.seq < b.seq
		}),
	}
}

func (t *Table[K, V]) Put(key K, value V) {
	t.tree.ReplaceOrInsert(entry[K, V]{key: key, seq: t.seq, value: value})
	t.seq++
}

func (t *Table[K, V]) Len() int {
	return t.tree.Len()
}

// All yields every record in order.
func (t *Table[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		t.tree.Ascend(func(e entry[K, V]) bool {
			return yield(e.key, e.value)
		})
	}
}

// Source returns a merge source over a snapshot of the table. Later puts are not visible to it.
func (t *Table[K, V]) Source() merge.Source[K, V] {
	return &source[K, V]{tree: t.tree.Clone()}
}

type source[K, V any] struct {
	tree    *btree.BTreeG[entry[K, V]]
	last    entry[K, V]
	started bool
}

func (s *source[K, V]) Pull(ctx context.Context) (merge.Item[K, V], bool, error) {
	var zero merge.Item[K, V]
	if s.tree == nil {
		return zero, false, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	var next entry[K, V]
	found := false
	visit := func(e entry[K, V]) bool {
		next, found = e, true
		return false
	}
	if s.started {
		s.tree.AscendGreaterOrEqual(entry[K, V]{key: s.last.key, seq: s.last.seq + 1}, visit)
	} else {
		s.tree.Ascend(visit)
	}
	if !found {
		s.tree = nil
		return zero, false, nil
	}
	s.last, s.started = next, true
	return merge.Item[K, V]{Key: next.key, Value: next.value}, true, nil
}

func (s *source[K, V]) Close() error {
	s.tree = nil
	return nil
}

// WriteRun writes the table to w as a run file and returns the number of records written.
func WriteRun(t *Table[[]byte, []byte], w io.Writer) (uint64, error) {
	rw, err := runfile.NewWriter(w)
	if err != nil {
		return 0, err
	}
	for key, value := range t.All() {
		if err := rw.Write(key, value); err != nil {
			return rw.Count(), err
		}
	}
	if err := rw.Close(); err != nil {
		return rw.Count(), err
	}
	return rw.Count(), nil
}
