package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/garethgeorge/kmerge/internal/buffers"
	"github.com/garethgeorge/kmerge/internal/ioutil"
	"github.com/garethgeorge/kmerge/internal/runfile"
)

const (
	formatText = "text"
	formatRun  = "run"
)

// recordWriter writes merged records in one output format. Close finishes the format but leaves
// the underlying writer open. Abort flushes the records written so far without finishing the
// format.
type recordWriter interface {
	Write(key, value []byte) error
	Close() error
	Abort() error
}

func newRecordWriter(format string, w io.Writer) (recordWriter, error) {
	switch format {
	case formatText:
		return &textWriter{w: ioutil.WithBufferedWrites(w)}, nil
	case formatRun:
		bw := ioutil.WithBufferedWrites(w)
		rw, err := runfile.NewWriter(bw)
		if err != nil {
			return nil, err
		}
		return &runWriter{Writer: rw, buffered: bw}, nil
	}
	return nil, fmt.Errorf("unknown format %q, want %s or %s", format, formatText, formatRun)
}

// textWriter writes key<TAB>value lines.
type textWriter struct {
	w io.WriteCloser
}

func (t *textWriter) Write(key, value []byte) error {
	line := make([]byte, 0, len(key)+len(value)+2)
	line = append(line, key...)
	line = append(line, '\t')
	line = append(line, value...)
	line = append(line, '\n')
	_, err := t.w.Write(line)
	return err
}

func (t *textWriter) Close() error {
	return t.w.Close()
}

func (t *textWriter) Abort() error {
	return t.w.Close()
}

type runWriter struct {
	*runfile.Writer
	buffered io.WriteCloser
}

func (r *runWriter) Close() error {
	if err := r.Writer.Close(); err != nil {
		return err
	}
	return r.buffered.Close()
}

// Abort leaves the run without a trailer so readers report it as truncated.
func (r *runWriter) Abort() error {
	return r.buffered.Close()
}

// openOutput opens path for writing, "-" meaning stdout. Paths ending in .zst are zstd
// compressed.
func openOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	var out io.WriteCloser
	if path == "-" || path == "" {
		out = ioutil.WithWriterCloser(stdout, ioutil.NopCloser)
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		out = f
	}
	if strings.HasSuffix(path, buffers.CompressedSuffix) {
		return buffers.NewCompressingWriter(out)
	}
	return out, nil
}
