// Package poolutil provides a bounded, channel backed object pool.
package poolutil

// Pool keeps at most size idle values. Unlike sync.Pool, idle values are never dropped by the
// garbage collector, which suits long lived objects such as zstd decoders.
type Pool[T any] struct {
	newFn   func() T
	resetFn func(T) T
	idle    chan T
}

// NewPool returns a pool creating values with newFn. resetFn, if set, is applied to every value
// returned with Put before it is kept.
func NewPool[T any](newFn func() T, resetFn func(T) T, size int) *Pool[T] {
	return &Pool[T]{
		newFn:   newFn,
		resetFn: resetFn,
		idle:    make(chan T, size),
	}
}

// Get returns an idle value or a new one.
func (p *Pool[T]) Get() T {
	select {
	case item := <-p.idle:
		return item
	default:
		return p.newFn()
	}
}

// Put returns item to the pool. It is dropped when the pool is full.
func (p *Pool[T]) Put(item T) {
	if p.resetFn != nil {
		item = p.resetFn(item)
	}
	select {
	case p.idle <- item:
	default:
	}
}

// Idle reports the number of values waiting in the pool.
func (p *Pool[T]) Idle() int {
	return len(p.idle)
}
