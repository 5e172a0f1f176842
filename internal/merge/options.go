package merge

import "log/slog"

// ErrorPolicy decides what happens when a source fails.
type ErrorPolicy int

const (
	// FailFast fails the whole merge on the first source error.
	FailFast ErrorPolicy = iota
	// SkipSource drops the failing source and keeps merging the others. Items the source would
	// have produced are lost, so this must be chosen explicitly.
	SkipSource
)

func (p ErrorPolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case SkipSource:
		return "skip-source"
	}
	return "unknown"
}

// Stats is a snapshot of engine bookkeeping passed to observers.
type Stats struct {
	State          State
	FrontierLen    int
	MaxFrontierLen int
	ActiveSources  int
	Emitted        int64
	Pulls          int64
}

type options struct {
	onSourceError ErrorPolicy
	tieBreak      TieBreak
	strict        bool
	observer      func(Stats)
	logger        *slog.Logger
}

type Option = func(*options)

// WithOnSourceError sets the policy applied when a source returns an error.
func WithOnSourceError(policy ErrorPolicy) func(*options) {
	return func(o *options) {
		o.onSourceError = policy
	}
}

// WithTieBreak sets the order of equal keys coming from different sources.
func WithTieBreak(tieBreak TieBreak) func(*options) {
	return func(o *options) {
		o.tieBreak = tieBreak
	}
}

// WithStrict enables checking that every source is itself ordered. A source that goes backwards
// fails with an *OrderViolationError, handled like any other source error.
// Costs one extra comparison per item.
func WithStrict(strict bool) func(*options) {
	return func(o *options) {
		o.strict = strict
	}
}

// WithObserver installs a hook called after construction and after every step.
func WithObserver(observer func(Stats)) func(*options) {
	return func(o *options) {
		o.observer = observer
	}
}

func WithLogger(logger *slog.Logger) func(*options) {
	return func(o *options) {
		o.logger = logger
	}
}
