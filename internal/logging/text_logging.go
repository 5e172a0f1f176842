package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// TextHandler writes compact log lines. The "engine" attribute, when present, is printed as a
// bracketed tag so lines of concurrent merges can be told apart.
type TextHandler struct {
	w     io.Writer
	now   func() time.Time
	tag   string
	mu    *sync.Mutex // serializes writes to w
	attrs []slog.Attr
}

func NewTextHandler(w io.Writer) *TextHandler {
	return &TextHandler{
		w:   w,
		now: time.Now,
		tag: "main",
		mu:  &sync.Mutex{},
	}
}

func (h *TextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= globalLevel.Level()
}

func (h *TextHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := make([]byte, 0, 1024)
	buf = fmt.Appendf(buf, "%s ", h.now().Format("2006/01/02 15:04:05"))
	buf = fmt.Appendf(buf, "%s ", r.Level.String())
	buf = fmt.Appendf(buf, "[%s] ", h.tag)
	buf = fmt.Appendf(buf, "%s", r.Message)

	appendAttr := func(a slog.Attr) bool {
		buf = fmt.Appendf(buf, " %s=", a.Key)
		buf = appendValue(buf, a.Value)
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(appendAttr)
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for i, a := range attrs {
		if a.Key == "engine" {
			next.tag = a.Value.String()
			attrs = slices.Delete(slices.Clone(attrs), i, i+1)
			break
		}
	}
	next.attrs = append(next.attrs, attrs...)
	return next
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	panic("groups not supported")
}

func (h *TextHandler) clone() *TextHandler {
	return &TextHandler{
		w:     h.w,
		now:   h.now,
		tag:   h.tag,
		mu:    h.mu,
		attrs: slices.Clone(h.attrs),
	}
}

// Append a value to the buffer wrapping in quotes if needed.
func appendValue(buf []byte, value slog.Value) []byte {
	s := value.String()
	if needsQuoting(s) {
		buf = fmt.Appendf(buf, "%q", s)
	} else {
		buf = fmt.Appendf(buf, "%s", s)
	}
	return buf
}

// Only spaces, '=' and unprintable runes need quoting for these logs.
func needsQuoting(s string) bool {
	if len(s) == 0 {
		return true
	}
	for i := 0; i < len(s); {
		b := s[i]
		if b < utf8.RuneSelf {
			if b == ' ' || b == '=' || b == '"' || b < 0x20 {
				return true
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return true
		}
		i += size
	}
	return false
}
