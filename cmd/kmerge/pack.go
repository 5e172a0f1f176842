package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/garethgeorge/kmerge/internal/buffers"
	"github.com/garethgeorge/kmerge/internal/ioutil"
	"github.com/garethgeorge/kmerge/internal/memrun"
	"github.com/garethgeorge/kmerge/internal/objstore"
	"github.com/garethgeorge/kmerge/internal/progress"
	"github.com/garethgeorge/kmerge/internal/runfile"
	"github.com/urfave/cli/v2"
)

func packCommand() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Write key<TAB>value lines as a run",
		ArgsUsage: "[input, defaults to stdin]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Required: true,
				Usage:    "run file or s3://bucket/key to write",
			},
			&cli.BoolFlag{
				Name:  "compress",
				Usage: "zstd compress the run, adds the .zst suffix to --out",
			},
			&cli.BoolFlag{
				Name:  "sort",
				Usage: "sort the input in memory instead of rejecting unsorted input",
			},
		},
		Action: runPack,
	}
}

// lineScanner yields key/value pairs from key<TAB>value lines. Lines without a tab have an
// empty value. The yielded slices are only valid until the next iteration.
type lineScanner struct {
	scanner *bufio.Scanner
	lines   int
	err     error
}

func newLineScanner(r io.Reader) *lineScanner {
	s := bufio.NewScanner(ioutil.WithBufferedReads(r))
	s.Buffer(make([]byte, 0, 64*1024), runfile.MaxRecordSize+1)
	return &lineScanner{scanner: s}
}

func (l *lineScanner) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for l.scanner.Scan() {
			l.lines++
			line := l.scanner.Bytes()
			key, value, _ := bytes.Cut(line, []byte{'\t'})
			if !yield(key, value) {
				return
			}
		}
		if err := l.scanner.Err(); err != nil {
			l.err = fmt.Errorf("read line %d: %w", l.lines+1, err)
		}
	}
}

func runPack(c *cli.Context) error {
	ctx := c.Context

	var in io.Reader = os.Stdin
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	outPath := c.String("out")
	if c.Bool("compress") && !strings.HasSuffix(outPath, buffers.CompressedSuffix) {
		outPath += buffers.CompressedSuffix
	}

	tracker := progress.NewLogTracker(slog.Default(), "packing "+outPath, 0)
	lines := newLineScanner(in)
	records := lines.All()
	if c.Bool("sort") {
		table := memrun.New[[]byte, []byte](runfile.Compare)
		for key, value := range records {
			table.Put(bytes.Clone(key), bytes.Clone(value))
		}
		if lines.err != nil {
			return lines.err
		}
		records = table.All()
	}

	var count uint64
	var err error
	if isS3(outPath) {
		count, err = packToS3(c, outPath, records)
	} else {
		count, err = packToFile(outPath, c.App.Writer, records)
	}
	err = errors.Join(err, lines.err)
	if err != nil {
		tracker.SetError(err)
		tracker.MarkFinished()
		return fmt.Errorf("pack %s: %w", outPath, err)
	}
	tracker.SetDone(int(count))
	tracker.MarkFinished()
	slog.Info("packed run", "path", outPath, "records", count)
	return ctx.Err()
}

func packToS3(c *cli.Context, uri string, records iter.Seq2[[]byte, []byte]) (uint64, error) {
	bucket, key, err := objstore.ParseURI(uri)
	if err != nil {
		return 0, err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return 0, fmt.Errorf("%s names a prefix, not an object", uri)
	}
	store, err := newResolver(c.String("region")).store(c.Context, bucket)
	if err != nil {
		return 0, err
	}
	return store.PutRun(c.Context, key, records)
}

func packToFile(path string, stdout io.Writer, records iter.Seq2[[]byte, []byte]) (count uint64, err error) {
	out, err := openOutput(path, stdout)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, out.Close())
		if err != nil && path != "-" {
			os.Remove(path)
		}
	}()

	bw := ioutil.WithBufferedWrites(out)
	w, err := runfile.NewWriter(bw)
	if err != nil {
		return 0, err
	}
	for key, value := range records {
		if err := w.Write(key, value); err != nil {
			return w.Count(), err
		}
	}
	if err := w.Close(); err != nil {
		return w.Count(), err
	}
	return w.Count(), bw.Close()
}
