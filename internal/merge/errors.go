package merge

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrFinished is returned by Next once the engine has reported Done or Failed.
	ErrFinished = errors.New("merge already finished")
	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("merge engine closed")
)

// SourceError reports that a source failed to produce its next item.
type SourceError struct {
	SourceID int
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %d: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// OrderViolationError reports a source that yielded a key smaller than its previous key. It is
// only produced in strict mode.
type OrderViolationError struct {
	SourceID int
	Prev     any
	Got      any
}

func (e *OrderViolationError) Error() string {
	return fmt.Sprintf("source %d yielded key %v after %v", e.SourceID, e.Got, e.Prev)
}

// EngineError is returned by New and Next. It wraps a *SourceError, a context error or one of
// ErrFinished and ErrClosed.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return "merge " + e.Op + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// SourceErrors collects the failures of sources dropped under SkipSource, keyed by source id.
type SourceErrors map[int]error

func (e SourceErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	ids := make([]int, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	builder := strings.Builder{}
	builder.WriteString("skipped sources:\n")
	for _, id := range ids {
		fmt.Fprintf(&builder, "%d: %v\n", id, e[id])
	}
	return builder.String()
}

func (e SourceErrors) HasErrors() bool {
	return len(e) > 0
}
