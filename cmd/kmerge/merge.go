package main

import (
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/garethgeorge/kmerge/internal/digest"
	"github.com/garethgeorge/kmerge/internal/ioutil"
	"github.com/garethgeorge/kmerge/internal/merge"
	"github.com/garethgeorge/kmerge/internal/mergemetrics"
	"github.com/garethgeorge/kmerge/internal/progress"
	"github.com/garethgeorge/kmerge/internal/runfile"
	"github.com/urfave/cli/v2"
)

func mergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge sorted runs into one sorted output",
		ArgsUsage: "<run|s3://bucket/key|s3://bucket/prefix/>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "-",
				Usage:   "output file, - for stdout; a .zst suffix compresses the output",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: formatText,
				Usage: "output format: text (key<TAB>value lines) or run",
			},
			&cli.BoolFlag{
				Name:  "skip-failing",
				Usage: "drop runs that fail to read instead of failing the merge, their remaining records are lost",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "fail runs whose keys go backwards",
			},
			&cli.StringFlag{
				Name:  "ties",
				Value: "registration",
				Usage: "order of equal keys from different runs: registration or reverse",
			},
			&cli.StringFlag{
				Name:  "digest",
				Usage: "print a digest of the output, one of xxhash, blake3, sha256",
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "write merge metrics in Prometheus format to this file after the merge, - for stderr",
			},
			&cli.DurationFlag{
				Name:  "progress-interval",
				Value: 5 * time.Second,
				Usage: "how often progress is logged at info level",
			},
		},
		Action: runMerge,
	}
}

func mergeOptions(c *cli.Context) ([]merge.Option, error) {
	opts := []merge.Option{merge.WithLogger(slog.Default())}
	if c.Bool("skip-failing") {
		opts = append(opts, merge.WithOnSourceError(merge.SkipSource))
	}
	if c.Bool("strict") {
		opts = append(opts, merge.WithStrict(true))
	}
	switch ties := c.String("ties"); ties {
	case "registration":
		opts = append(opts, merge.WithTieBreak(merge.RegistrationOrder))
	case "reverse":
		opts = append(opts, merge.WithTieBreak(merge.ReverseRegistrationOrder))
	default:
		return nil, fmt.Errorf("unknown tie order %q, want registration or reverse", ties)
	}
	return opts, nil
}

func runMerge(c *cli.Context) (err error) {
	ctx := c.Context
	opts, err := mergeOptions(c)
	if err != nil {
		return err
	}

	var h hash.Hash
	if name := c.String("digest"); name != "" {
		if h, err = digest.New(name); err != nil {
			return err
		}
	}

	tracker := progress.NewLogTracker(slog.Default(), "merging", c.Duration("progress-interval"))
	observers := []func(merge.Stats){func(s merge.Stats) { tracker.SetDone(int(s.Emitted)) }}
	if c.String("metrics") != "" {
		observers = append(observers, mergemetrics.Observer())
	}
	opts = append(opts, merge.WithObserver(mergemetrics.Chain(observers...)))

	sources, paths, err := newResolver(c.String("region")).sources(ctx, c.Args().Slice())
	if err != nil {
		return err
	}
	tracker.SetMessage(fmt.Sprintf("merging %d runs", len(sources)))

	out, err := openOutput(c.String("out"), c.App.Writer)
	if err != nil {
		for _, s := range sources {
			s.Close()
		}
		return err
	}
	var sink io.WriteCloser = ioutil.WithWriterCloser(out, ioutil.NopCloser)
	if h != nil {
		sink = ioutil.ParallelMultiWriter(out, h)
	}
	abort := func(err error) error {
		return errors.Join(err, sink.Close(), out.Close())
	}
	records, err := newRecordWriter(c.String("format"), sink)
	if err != nil {
		for _, s := range sources {
			s.Close()
		}
		return abort(err)
	}

	e, err := merge.New(ctx, runfile.Compare, sources, opts...)
	if err != nil {
		tracker.SetError(err)
		tracker.MarkFinished()
		return abort(err)
	}
	defer func() {
		err = errors.Join(err, e.Close())
	}()

	fail := func(err error) error {
		tracker.SetError(err)
		tracker.MarkFinished()
		return abort(errors.Join(err, records.Abort()))
	}
	for item, mergeErr := range e.All(ctx) {
		if mergeErr != nil {
			return fail(fmt.Errorf("after %d records: %w", e.Stats().Emitted, mergeErr))
		}
		if err := records.Write(item.Key, item.Value); err != nil {
			return fail(fmt.Errorf("write output: %w", err))
		}
	}
	tracker.MarkFinished()

	if err := errors.Join(records.Close(), sink.Close(), out.Close()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	for id, srcErr := range e.Skipped() {
		slog.Warn("run skipped", "run", paths[id], "error", srcErr)
	}
	if skipped := e.Skipped(); skipped.HasErrors() {
		fmt.Fprintf(c.App.ErrWriter, "skipped %d of %d runs\n", len(skipped), len(paths))
	}
	if h != nil {
		fmt.Fprintf(c.App.ErrWriter, "%s %s\n", c.String("digest"), digest.Hex(h))
	}
	if path := c.String("metrics"); path != "" {
		if err := writeMetrics(path, c.App.ErrWriter); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(path string, stderr io.Writer) error {
	if path == "-" {
		return mergemetrics.WritePrometheus(stderr)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := mergemetrics.WritePrometheus(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
