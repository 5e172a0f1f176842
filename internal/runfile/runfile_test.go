package runfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/garethgeorge/kmerge/internal/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	key, value string
}

func writeRun(t *testing.T, records ...record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write([]byte(r.key), []byte(r.value)))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readAll(t *testing.T, data []byte) ([]record, error) {
	t.Helper()
	rd, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	var out []record
	for {
		item, ok, err := rd.Pull(context.Background())
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, record{string(item.Key), string(item.Value)})
	}
}

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		records []record
	}{
		{name: "Empty"},
		{name: "Single", records: []record{{"a", "1"}}},
		{name: "Duplicates", records: []record{{"a", "1"}, {"a", "2"}, {"b", ""}}},
		{name: "EmptyKey", records: []record{{"", "x"}, {"k", "y"}}},
		{name: "Large", records: func() []record {
			var rs []record
			for i := range 1000 {
				rs = append(rs, record{fmt.Sprintf("key%06d", i), fmt.Sprintf("value %d", i)})
			}
			return rs
		}()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := writeRun(t, tc.records...)
			got, err := readAll(t, data)
			require.NoError(t, err)
			assert.Equal(t, tc.records, got)
		})
	}
}

func TestWriterRejectsUnsorted(t *testing.T) {
	w, err := NewWriter(io.Discard)
	require.NoError(t, err)
	require.NoError(t, w.Write([]byte("b"), nil))
	require.NoError(t, w.Write([]byte("b"), nil))
	require.ErrorIs(t, w.Write([]byte("a"), nil), ErrUnsorted)
	assert.Equal(t, uint64(2), w.Count())
}

func TestWriterRejectsLargeKey(t *testing.T) {
	w, err := NewWriter(io.Discard)
	require.NoError(t, err)
	require.ErrorIs(t, w.Write(make([]byte, maxKeySize+1), nil), ErrRecordTooLarge)
}

func TestReaderRejectsBadHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("NOPE\x01")))
	require.ErrorIs(t, err, ErrBadHeader)

	_, err = NewReader(bytes.NewReader([]byte("KR")))
	require.ErrorIs(t, err, ErrBadHeader)

	_, err = NewReader(bytes.NewReader([]byte("KRUN\x07")))
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestReaderDetectsCorruption(t *testing.T) {
	data := writeRun(t, record{"apple", "red"}, record{"banana", "yellow"})

	t.Run("Truncated", func(t *testing.T) {
		for _, n := range []int{headerSize, headerSize + 3, len(data) - 25, len(data) - 1} {
			_, err := readAll(t, data[:n])
			assert.ErrorIs(t, err, ErrTruncated, "cut at %d", n)
		}
	})

	t.Run("FlippedValueByte", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[bytes.Index(bad, []byte("red"))] = 'R'
		got, err := readAll(t, bad)
		require.ErrorIs(t, err, ErrChecksumMismatch)
		// records are delivered before the trailer is checked
		assert.Len(t, got, 2)
	})

	t.Run("WrongCount", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-9]++
		_, err := readAll(t, bad)
		require.ErrorIs(t, err, ErrChecksumMismatch)
	})
}

func TestReaderItemsAreOwned(t *testing.T) {
	data := writeRun(t, record{"a", "first"}, record{"b", "second"})
	rd, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	first, ok, err := rd.Pull(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = rd.Pull(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "a", string(first.Key))
	assert.Equal(t, "first", string(first.Value))
	assert.Equal(t, uint64(2), rd.Count())
}

func TestReaderHonoursContext(t *testing.T) {
	data := writeRun(t, record{"a", "1"})
	rd, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = rd.Pull(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type closeCounter struct {
	io.Reader
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

func TestReaderClose(t *testing.T) {
	cc := &closeCounter{Reader: bytes.NewReader(writeRun(t))}
	rd, err := NewReader(cc)
	require.NoError(t, err)
	require.NoError(t, rd.Close())
	require.NoError(t, rd.Close())
	assert.Equal(t, 1, cc.closes)
}

func TestMergeRuns(t *testing.T) {
	runs := [][]record{
		{{"a", "r0"}, {"c", "r0"}, {"e", "r0"}},
		{{"b", "r1"}, {"c", "r1"}},
		{},
		{{"a", "r3"}, {"f", "r3"}},
	}
	var sources []merge.Source[[]byte, []byte]
	for _, run := range runs {
		rd, err := NewReader(bytes.NewReader(writeRun(t, run...)))
		require.NoError(t, err)
		sources = append(sources, rd)
	}

	var got []record
	for item, err := range merge.Merge(context.Background(), Compare, sources) {
		require.NoError(t, err)
		got = append(got, record{string(item.Key), string(item.Value)})
	}
	assert.Equal(t, []record{
		{"a", "r0"}, {"a", "r3"}, {"b", "r1"}, {"c", "r0"}, {"c", "r1"}, {"e", "r0"}, {"f", "r3"},
	}, got)
}

func TestMergeRunsStrictCatchesUnsortedRun(t *testing.T) {
	// Hand build a run that bypasses the writer's order check.
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Write([]byte("b"), nil))
	w.prevKey = nil
	w.count = 0
	require.NoError(t, w.Write([]byte("a"), nil))
	w.count = 2
	require.NoError(t, w.Close())

	rd, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	var errs []error
	for _, err := range merge.Merge(context.Background(), Compare, []merge.Source[[]byte, []byte]{rd}, merge.WithStrict(true)) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	require.Len(t, errs, 1)
	var orderErr *merge.OrderViolationError
	assert.ErrorAs(t, errs[0], &orderErr)
}

func TestLazySource(t *testing.T) {
	data := writeRun(t, record{"a", "1"})
	opens := 0
	src := LazySource(func(ctx context.Context) (*Reader, error) {
		opens++
		return NewReader(bytes.NewReader(data))
	})
	assert.Zero(t, opens)

	item, ok, err := src.Pull(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", string(item.Key))
	_, ok, err = src.Pull(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, opens)
	require.NoError(t, src.Close())
}

func TestLazySourceOpenError(t *testing.T) {
	src := LazySource(func(ctx context.Context) (*Reader, error) {
		return nil, ErrBadHeader
	})
	_, _, err := src.Pull(context.Background())
	require.ErrorIs(t, err, ErrBadHeader)
	require.NoError(t, src.Close())
}
