// Package progress reports the progress of long running merges and packs.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SpinnerProgressTracker tracks work with no known total.
type SpinnerProgressTracker interface {
	SetMessage(msg string)
	SetDone(n int)
	SetError(err error)
	MarkFinished()
}

type NoopSpinnerProgressTracker struct{}

var _ SpinnerProgressTracker = NoopSpinnerProgressTracker{}

func (n NoopSpinnerProgressTracker) SetMessage(msg string) {}
func (n NoopSpinnerProgressTracker) SetDone(n2 int)        {}
func (n NoopSpinnerProgressTracker) SetError(err error)    {}
func (n NoopSpinnerProgressTracker) MarkFinished()         {}

// BarProgressTracker tracks work against a total.
type BarProgressTracker interface {
	SetMessage(msg string)
	SetTotal(total int64)
	SetDone(n int)
	SetError(err error)
	MarkFinished()
}

type NoopBarProgressTracker struct{}

var _ BarProgressTracker = NoopBarProgressTracker{}

func (n NoopBarProgressTracker) SetMessage(msg string) {}
func (n NoopBarProgressTracker) SetTotal(total int64)  {}
func (n NoopBarProgressTracker) SetDone(n2 int)        {}
func (n NoopBarProgressTracker) SetError(err error)    {}
func (n NoopBarProgressTracker) MarkFinished()         {}

// LogTracker logs progress at most once per interval. It implements both tracker interfaces.
type LogTracker struct {
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	msg      string
	total    int64
	done     int
	lastLog  time.Time
	err      error
	finished bool
}

var (
	_ SpinnerProgressTracker = (*LogTracker)(nil)
	_ BarProgressTracker     = (*LogTracker)(nil)
)

func NewLogTracker(logger *slog.Logger, msg string, interval time.Duration) *LogTracker {
	return &LogTracker{
		logger:   logger,
		interval: interval,
		now:      time.Now,
		msg:      msg,
	}
}

func (l *LogTracker) SetMessage(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msg = msg
}

func (l *LogTracker) SetTotal(total int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = total
}

func (l *LogTracker) SetDone(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = n
	now := l.now()
	if now.Sub(l.lastLog) < l.interval {
		return
	}
	l.lastLog = now
	l.log(slog.LevelInfo)
}

func (l *LogTracker) SetError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *LogTracker) MarkFinished() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	l.finished = true
	if l.err != nil {
		l.log(slog.LevelError)
		return
	}
	l.log(slog.LevelInfo)
}

// Done returns the last reported count.
func (l *LogTracker) Done() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *LogTracker) log(level slog.Level) {
	attrs := []any{"done", l.done}
	if l.total > 0 {
		attrs = append(attrs, "total", l.total)
	}
	if l.finished {
		attrs = append(attrs, "finished", true)
	}
	if l.err != nil {
		attrs = append(attrs, "error", l.err)
	}
	l.logger.Log(context.Background(), level, l.msg, attrs...)
}
