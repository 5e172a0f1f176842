package merge

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"
)

// drawSources draws between 0 and 8 sorted runs of small keys so that ties are common.
func drawSources(rt *rapid.T) [][]int {
	runs := rapid.SliceOfN(rapid.SliceOfN(rapid.IntRange(0, 20), 0, 12), 0, 8).Draw(rt, "runs")
	for _, run := range runs {
		slices.Sort(run)
	}
	return runs
}

func itemSources(runs [][]int) []Source[int, string] {
	sources := make([]Source[int, string], len(runs))
	for i, run := range runs {
		items := make([]Item[int, string], len(run))
		for j, k := range run {
			items[j] = Item[int, string]{Key: k, Value: fmt.Sprintf("%d/%d", i, j)}
		}
		sources[i] = FromSlice(items)
	}
	return sources
}

func TestPropertyTotalityAndOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		runs := drawSources(rt)

		e, err := New(context.Background(), intCompare, itemSources(runs))
		if err != nil {
			rt.Fatalf("new: %v", err)
		}
		items, err := collect(e)
		if err != nil {
			rt.Fatalf("merge: %v", err)
		}

		// every payload exactly once
		var want []string
		for i, run := range runs {
			for j := range run {
				want = append(want, fmt.Sprintf("%d/%d", i, j))
			}
		}
		got := valuesOf(items)
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			rt.Fatalf("output is not a permutation of the input: want %v got %v", want, got)
		}

		if !slices.IsSorted(keysOf(items)) {
			rt.Fatalf("output not sorted: %v", keysOf(items))
		}
	})
}

func TestPropertyTieDeterminism(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		runs := drawSources(rt)
		reverse := rapid.Bool().Draw(rt, "reverse")
		tieBreak := TieBreak(RegistrationOrder)
		if reverse {
			tieBreak = ReverseRegistrationOrder
		}

		run := func() []Item[int, string] {
			e, err := New(context.Background(), intCompare, itemSources(runs), WithTieBreak(tieBreak))
			if err != nil {
				rt.Fatalf("new: %v", err)
			}
			items, err := collect(e)
			if err != nil {
				rt.Fatalf("merge: %v", err)
			}
			return items
		}

		first := run()
		if second := run(); !slices.Equal(first, second) {
			rt.Fatalf("runs differ: %v vs %v", first, second)
		}

		// equal keys appear grouped by source in tie-break order, and in source order within a source
		for i := 1; i < len(first); i++ {
			a, b := first[i-1], first[i]
			if a.Key != b.Key {
				continue
			}
			var aSrc, aPos, bSrc, bPos int
			fmt.Sscanf(a.Value, "%d/%d", &aSrc, &aPos)
			fmt.Sscanf(b.Value, "%d/%d", &bSrc, &bPos)
			if aSrc == bSrc {
				if aPos > bPos {
					rt.Fatalf("items of source %d reordered: %v before %v", aSrc, a, b)
				}
				continue
			}
			if tieBreak(aSrc, bSrc) > 0 {
				rt.Fatalf("tie-break violated: %v before %v", a, b)
			}
		}
	})
}

func TestPropertyMemoryBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		runs := drawSources(rt)
		nonEmpty := 0
		for _, run := range runs {
			if len(run) > 0 {
				nonEmpty++
			}
		}

		var violation string
		e, err := New(context.Background(), intCompare, itemSources(runs), WithObserver(func(s Stats) {
			if s.FrontierLen > s.ActiveSources && violation == "" {
				violation = fmt.Sprintf("frontier %d > active %d", s.FrontierLen, s.ActiveSources)
			}
		}))
		if err != nil {
			rt.Fatalf("new: %v", err)
		}
		if _, err := collect(e); err != nil {
			rt.Fatalf("merge: %v", err)
		}
		if violation != "" {
			rt.Fatal(violation)
		}
		stats := e.Stats()
		if stats.MaxFrontierLen > nonEmpty {
			rt.Fatalf("frontier peaked at %d with %d non-empty sources", stats.MaxFrontierLen, nonEmpty)
		}
		total := 0
		for _, run := range runs {
			total += len(run)
		}
		// exactly one pull per item plus one exhaustion pull per source
		if want := int64(total + len(runs)); stats.Pulls != want {
			rt.Fatalf("pulls = %d, want %d", stats.Pulls, want)
		}
	})
}

func TestPropertyCancellation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		runs := drawSources(rt)
		srcs := make([]*testSource, len(runs))
		for i, run := range runs {
			srcs[i] = newTestSource(rt, run...)
		}
		e, err := New(context.Background(), intCompare, sourcesOf(srcs...))
		if err != nil {
			rt.Fatalf("new: %v", err)
		}

		steps := rapid.IntRange(0, 20).Draw(rt, "steps")
		for range steps {
			if _, ok, err := e.Next(context.Background()); err != nil || !ok {
				break
			}
		}
		if err := e.Close(); err != nil {
			rt.Fatalf("close: %v", err)
		}

		pulls := make([]int, len(srcs))
		for i, src := range srcs {
			if src.closeCount != 1 {
				rt.Fatalf("source %d closed %d times", i, src.closeCount)
			}
			pulls[i] = src.pulls
		}
		e.Next(context.Background())
		for i, src := range srcs {
			if src.pulls != pulls[i] {
				rt.Fatalf("source %d pulled after close", i)
			}
		}
	})
}

// The ordering must be a strict weak ordering, in fact a total order over distinct sources.
func TestPropertyOrderingConformance(t *testing.T) {
	type entry struct {
		key, source int
	}
	tieBreaks := map[string]TieBreak{
		"registration": RegistrationOrder,
		"reverse":      ReverseRegistrationOrder,
		"evens first": func(a, b int) int {
			return cmp.Compare(a%2, b%2)
		},
	}

	for name, tieBreak := range tieBreaks {
		t.Run(name, func(t *testing.T) {
			ordering := NewOrdering(intCompare, tieBreak)
			genEntry := rapid.Custom(func(rt *rapid.T) entry {
				return entry{
					key:    rapid.IntRange(0, 3).Draw(rt, "key"),
					source: rapid.IntRange(0, 5).Draw(rt, "source"),
				}
			})
			less := func(a, b entry) bool {
				return ordering.Less(a.key, a.source, b.key, b.source)
			}

			rapid.Check(t, func(rt *rapid.T) {
				a := genEntry.Draw(rt, "a")
				b := genEntry.Draw(rt, "b")
				c := genEntry.Draw(rt, "c")

				if less(a, a) {
					rt.Fatalf("irreflexivity violated for %v", a)
				}
				if less(a, b) && less(b, a) {
					rt.Fatalf("asymmetry violated for %v, %v", a, b)
				}
				if less(a, b) && less(b, c) && !less(a, c) {
					rt.Fatalf("transitivity violated for %v, %v, %v", a, b, c)
				}
				if a != b && !less(a, b) && !less(b, a) {
					rt.Fatalf("distinct entries %v, %v are unordered", a, b)
				}
				if a.key < b.key && !less(a, b) {
					rt.Fatalf("key order violated for %v, %v", a, b)
				}
			})
		})
	}
}
