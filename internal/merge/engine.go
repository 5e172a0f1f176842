package merge

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"maps"

	"github.com/segmentio/ksuid"
)

// State is the lifecycle state of an Engine.
type State int

const (
	StateInit State = iota
	StateRunning
	// StateDraining means a single source remains, the rest of the output is a copy of it.
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Engine merges K individually ordered sources into one ordered sequence.
//
// The engine holds at most one pulled item per source. Each call to Next emits the smallest held
// item and pulls exactly one replacement from the source it came from; there is no read-ahead and
// no background work. Equal keys are ordered by the configured TieBreak, so for a fixed
// registration order the output is reproducible regardless of source latency.
//
// An Engine owns its sources, is not safe for concurrent use and cannot be restarted. Close must
// be called to release the sources if the merge is abandoned before Next reports completion.
type Engine[K, V any] struct {
	id       string
	opts     options
	ordering Ordering[K]
	logger   *slog.Logger

	// cursors holds every registered source by id, frontier the subset with an unemitted item.
	cursors  []*cursor[K, V]
	frontier *frontier[K, V]
	active   int

	state    State
	closed   bool
	err      error
	pending  error
	closeErr error
	skipped  SourceErrors

	emitted int64
	pulls   int64
}

// New registers sources and pulls the first item from each of them, in order. Source ids are the
// positions in sources. compare orders keys; it must be a strict weak ordering.
//
// With the FailFast policy a source failing its first pull fails construction: every source is
// closed and an *EngineError wrapping a *SourceError is returned.
func New[K, V any](ctx context.Context, compare func(a, b K) int, sources []Source[K, V], opts ...Option) (*Engine[K, V], error) {
	o := options{
		onSourceError: FailFast,
		tieBreak:      RegistrationOrder,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	id := ksuid.New().String()
	ordering := NewOrdering(compare, o.tieBreak)
	e := &Engine[K, V]{
		id:       id,
		opts:     o,
		ordering: ordering,
		logger:   o.logger.With("engine", id),
		cursors:  make([]*cursor[K, V], len(sources)),
		frontier: newFrontier[K, V](ordering, len(sources)),
		active:   len(sources),
		state:    StateInit,
		skipped:  make(SourceErrors),
	}
	for i, src := range sources {
		e.cursors[i] = newCursor(i, src)
	}

	for _, c := range e.cursors {
		if err := ctx.Err(); err != nil {
			e.fail(err)
			return nil, &EngineError{Op: "init", Err: err}
		}
		ok, err := e.pull(ctx, c, false)
		switch {
		case err != nil && o.onSourceError == SkipSource:
			e.skip(c, err)
		case err != nil:
			e.fail(err)
			return nil, &EngineError{Op: "init", Err: err}
		case ok:
			e.frontier.insert(c)
		default:
			e.retire(c)
		}
	}

	e.state = StateRunning
	e.updateDraining()
	e.logger.Debug("merge started", "sources", len(sources), "active", e.active, "policy", o.onSourceError)
	e.observe()
	return e, nil
}

// ID uniquely identifies this merge in logs and metrics.
func (e *Engine[K, V]) ID() string {
	return e.id
}

func (e *Engine[K, V]) State() State {
	return e.state
}

// Err returns the error that failed the merge, if any.
func (e *Engine[K, V]) Err() error {
	return e.err
}

// Skipped returns the sources dropped under the SkipSource policy.
func (e *Engine[K, V]) Skipped() SourceErrors {
	return maps.Clone(e.skipped)
}

func (e *Engine[K, V]) Stats() Stats {
	return Stats{
		State:          e.state,
		FrontierLen:    e.frontier.len(),
		MaxFrontierLen: e.frontier.maxSize,
		ActiveSources:  e.active,
		Emitted:        e.emitted,
		Pulls:          e.pulls,
	}
}

// Next returns the next item in merged order. ok is false once every source is exhausted, after
// which the engine is Done and has released its sources.
//
// When a source fails while being advanced, the item emitted by that call is still valid; the
// failure is returned by the following call. Items already returned are never retracted.
// Calling Next after Done, a failure or Close returns an error matching ErrFinished or ErrClosed.
func (e *Engine[K, V]) Next(ctx context.Context) (item Item[K, V], ok bool, err error) {
	if e.closed {
		return item, false, &EngineError{Op: "next", Err: ErrClosed}
	}
	if e.state == StateDone || e.state == StateFailed {
		return item, false, &EngineError{Op: "next", Err: ErrFinished}
	}
	if e.pending != nil {
		err := e.pending
		e.pending = nil
		e.fail(err)
		e.observe()
		return item, false, &EngineError{Op: "next", Err: err}
	}
	if err := ctx.Err(); err != nil {
		e.fail(err)
		e.observe()
		return item, false, &EngineError{Op: "next", Err: err}
	}

	if e.frontier.isEmpty() {
		e.state = StateDone
		e.releaseAll()
		e.logger.Debug("merge finished", "emitted", e.emitted, "pulls", e.pulls, "skipped", len(e.skipped))
		e.observe()
		return item, false, nil
	}

	c := e.frontier.popMin()
	item = c.peek()
	e.emitted++

	more, err := e.pull(ctx, c, true)
	switch {
	case err != nil && e.opts.onSourceError == SkipSource:
		e.skip(c, err)
	case err != nil:
		// Surfaced on the next call, item is the global minimum and still valid.
		e.pending = err
	case more:
		e.frontier.insert(c)
	default:
		e.retire(c)
	}

	e.updateDraining()
	e.observe()
	return item, true, nil
}

// Close releases every source still owned by the engine. No source is pulled after Close.
// It returns any errors reported while closing sources during the merge.
func (e *Engine[K, V]) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.state != StateDone && e.state != StateFailed {
		e.logger.Debug("merge cancelled", "emitted", e.emitted, "active", e.active)
	}
	e.releaseAll()
	err := e.closeErr
	e.closeErr = nil
	return err
}

// All returns the remaining output as a sequence. A failure is yielded once as the final pair.
// The engine is closed when the sequence ends or the loop breaks.
func (e *Engine[K, V]) All(ctx context.Context) iter.Seq2[Item[K, V], error] {
	return func(yield func(Item[K, V], error) bool) {
		defer e.Close()
		for {
			item, ok, err := e.Next(ctx)
			if err != nil {
				yield(item, err)
				return
			}
			if !ok || !yield(item, nil) {
				return
			}
		}
	}
}

// Merge is shorthand for New followed by All. Construction is deferred until iteration starts.
func Merge[K, V any](ctx context.Context, compare func(a, b K) int, sources []Source[K, V], opts ...Option) iter.Seq2[Item[K, V], error] {
	return func(yield func(Item[K, V], error) bool) {
		e, err := New(ctx, compare, sources, opts...)
		if err != nil {
			yield(Item[K, V]{}, err)
			return
		}
		for item, err := range e.All(ctx) {
			if !yield(item, err) {
				return
			}
		}
	}
}

// pull advances c and reports whether it holds a new item. Errors are returned as *SourceError.
func (e *Engine[K, V]) pull(ctx context.Context, c *cursor[K, V], checkOrder bool) (bool, error) {
	prev := c.current.Key
	e.pulls++
	ok, err := c.advance(ctx)
	if err != nil {
		e.active--
		return false, &SourceError{SourceID: c.id, Err: err}
	}
	if !ok {
		e.active--
		return false, nil
	}
	if checkOrder && e.opts.strict && e.ordering.compare(c.current.Key, prev) < 0 {
		c.state = SourceFailed
		e.active--
		return false, &SourceError{SourceID: c.id, Err: &OrderViolationError{SourceID: c.id, Prev: prev, Got: c.current.Key}}
	}
	return true, nil
}

func (e *Engine[K, V]) retire(c *cursor[K, V]) {
	if err := c.close(); err != nil {
		e.logger.Warn("close source", "source", c.id, "error", err)
		e.closeErr = errors.Join(e.closeErr, &SourceError{SourceID: c.id, Err: err})
	}
	e.logger.Debug("source retired", "source", c.id, "state", c.state)
}

func (e *Engine[K, V]) skip(c *cursor[K, V], err error) {
	e.skipped[c.id] = err
	e.logger.Warn("skipping failed source", "source", c.id, "error", err)
	e.retire(c)
}

func (e *Engine[K, V]) fail(err error) {
	e.state = StateFailed
	e.err = err
	e.logger.Debug("merge failed", "emitted", e.emitted, "error", err)
	e.releaseAll()
}

func (e *Engine[K, V]) releaseAll() {
	e.frontier.drain()
	for _, c := range e.cursors {
		if c.closed {
			continue
		}
		if err := c.close(); err != nil {
			e.closeErr = errors.Join(e.closeErr, &SourceError{SourceID: c.id, Err: err})
		}
	}
	e.active = 0
}

func (e *Engine[K, V]) updateDraining() {
	if e.state == StateRunning && e.active == 1 && e.pending == nil {
		e.state = StateDraining
	}
}

func (e *Engine[K, V]) observe() {
	if e.opts.observer != nil {
		e.opts.observer(e.Stats())
	}
}
