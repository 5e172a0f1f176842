package merge_test

import (
	"cmp"
	"context"
	"fmt"

	"github.com/garethgeorge/kmerge/internal/merge"
)

func run(keys ...int) merge.Source[int, string] {
	items := make([]merge.Item[int, string], len(keys))
	for i, k := range keys {
		items[i] = merge.Item[int, string]{Key: k, Value: fmt.Sprint(k)}
	}
	return merge.FromSlice(items)
}

func ExampleMerge() {
	sources := []merge.Source[int, string]{
		run(1, 4, 5),
		run(1, 3, 4),
		run(2, 6),
	}
	for item, err := range merge.Merge(context.Background(), cmp.Compare[int], sources) {
		if err != nil {
			panic(err)
		}
		fmt.Printf("%v,", item.Key)
	}
	// Output:
	// 1,1,2,3,4,4,5,6,
}

func ExampleEngine_Next() {
	ctx := context.Background()
	e, err := merge.New(ctx, cmp.Compare[int], []merge.Source[int, string]{run(7, 8, 9)})
	if err != nil {
		panic(err)
	}
	defer e.Close()

	for {
		item, ok, err := e.Next(ctx)
		if err != nil {
			panic(err)
		}
		if !ok {
			break
		}
		fmt.Println(item.Value)
	}
	fmt.Println(e.State())
	// Output:
	// 7
	// 8
	// 9
	// done
}
