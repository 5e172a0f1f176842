// Package runset stores sorted runs in a buffers.BufferFactory and merges them back together.
package runset

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/garethgeorge/kmerge/internal/buffers"
	"github.com/garethgeorge/kmerge/internal/merge"
	"github.com/garethgeorge/kmerge/internal/poolutil"
	"github.com/garethgeorge/kmerge/internal/progress"
	"github.com/garethgeorge/kmerge/internal/runfile"
	"golang.org/x/sync/errgroup"
)

type options struct {
	parallelism int
	progress    progress.SpinnerProgressTracker
	logger      *slog.Logger
}

type Option = func(*options)

// WithParallelism sets the number of runs AddRuns writes at once.
func WithParallelism(parallelism int) func(*options) {
	return func(o *options) {
		o.parallelism = parallelism
	}
}

// WithProgress reports the number of stored runs.
func WithProgress(tracker progress.SpinnerProgressTracker) func(*options) {
	return func(o *options) {
		o.progress = tracker
	}
}

func WithLogger(logger *slog.Logger) func(*options) {
	return func(o *options) {
		o.logger = logger
	}
}

// Run is a stored run. Runs are immutable once added.
type Run struct {
	handle buffers.BufferHandle
	count  uint64
}

func (r Run) Name() string {
	return r.handle.Name()
}

// Count is the number of records in the run.
func (r Run) Count() uint64 {
	return r.count
}

// Open returns a reader over the run. The caller must close it.
func (r Run) Open() (*runfile.Reader, error) {
	rc, err := r.handle.GetReader()
	if err != nil {
		return nil, fmt.Errorf("open run %s: %w", r.Name(), err)
	}
	rd, err := runfile.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("open run %s: %w", r.Name(), err)
	}
	return rd, nil
}

var writerPool = poolutil.NewPool(func() *bufio.Writer {
	return bufio.NewWriterSize(nil, 32*1024)
}, func(w *bufio.Writer) *bufio.Writer {
	w.Reset(nil)
	return w
}, 16)

// RunSet is an ordered collection of runs. Runs are merged in the order they were added, so ties
// between runs resolve to the earlier run under the default TieBreak.
//
// RunSet is safe for concurrent use.
type RunSet struct {
	factory buffers.BufferFactory
	opts    options

	mu   sync.Mutex
	runs []Run
}

func New(factory buffers.BufferFactory, opts ...func(*options)) *RunSet {
	o := options{
		parallelism: 2,
		progress:    progress.NoopSpinnerProgressTracker{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &RunSet{factory: factory, opts: o}
}

// AddRun stores the records of seq, which must already be sorted by key, as a new run. A run
// that fails to store keeps its buffer in the factory until Close.
func (rs *RunSet) AddRun(seq iter.Seq2[[]byte, []byte]) (Run, error) {
	run, err := rs.store(seq)
	if err != nil {
		return Run{}, err
	}
	rs.mu.Lock()
	rs.runs = append(rs.runs, run)
	n := len(rs.runs)
	rs.mu.Unlock()
	rs.opts.progress.SetDone(n)
	return run, nil
}

// AddRuns stores every seq in parallel. Runs are appended in argument order once all of them
// were stored; on error none are added.
func (rs *RunSet) AddRuns(ctx context.Context, seqs ...iter.Seq2[[]byte, []byte]) error {
	stored := make([]Run, len(seqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(rs.opts.parallelism, 1))
	for i, seq := range seqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			run, err := rs.store(seq)
			if err != nil {
				return fmt.Errorf("store run %d: %w", i, err)
			}
			stored[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rs.mu.Lock()
	rs.runs = append(rs.runs, stored...)
	n := len(rs.runs)
	rs.mu.Unlock()
	rs.opts.progress.SetDone(n)
	rs.opts.logger.Debug("stored runs", "added", len(stored), "total", n)
	return nil
}

func (rs *RunSet) store(seq iter.Seq2[[]byte, []byte]) (run Run, err error) {
	handle, err := rs.factory.New()
	if err != nil {
		return Run{}, fmt.Errorf("create buffer: %w", err)
	}
	wc, err := handle.GetWriter()
	if err != nil {
		return Run{}, fmt.Errorf("get writer for %s: %w", handle.Name(), err)
	}
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", handle.Name(), cerr)
		}
	}()

	bw := writerPool.Get()
	defer writerPool.Put(bw)
	bw.Reset(wc)

	w, err := runfile.NewWriter(bw)
	if err != nil {
		return Run{}, err
	}
	for key, value := range seq {
		if err := w.Write(key, value); err != nil {
			return Run{}, err
		}
	}
	if err := w.Close(); err != nil {
		return Run{}, err
	}
	if err := bw.Flush(); err != nil {
		return Run{}, fmt.Errorf("flush %s: %w", handle.Name(), err)
	}
	return Run{handle: handle, count: w.Count()}, nil
}

// Runs returns the stored runs in merge order.
func (rs *RunSet) Runs() []Run {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return slices.Clone(rs.runs)
}

// Sources returns one merge source per run. Runs are opened on the first pull, so a run that
// cannot be opened fails like any other source.
func (rs *RunSet) Sources() []merge.Source[[]byte, []byte] {
	runs := rs.Runs()
	sources := make([]merge.Source[[]byte, []byte], len(runs))
	for i, run := range runs {
		sources[i] = runfile.LazySource(func(context.Context) (*runfile.Reader, error) {
			return run.Open()
		})
	}
	return sources
}

// Merge merges every stored run by key.
func (rs *RunSet) Merge(ctx context.Context, opts ...merge.Option) iter.Seq2[merge.Item[[]byte, []byte], error] {
	return merge.Merge(ctx, runfile.Compare, rs.Sources(), opts...)
}

// Close releases the storage of every run.
func (rs *RunSet) Close() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.runs = nil
	rs.opts.progress.MarkFinished()
	if err := rs.factory.Release(); err != nil {
		return fmt.Errorf("release buffer factory: %w", err)
	}
	return nil
}
