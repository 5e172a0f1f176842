package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

func catCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "Print a run as key<TAB>value lines",
		ArgsUsage: "<run|s3://bucket/key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("cat takes exactly one run")
			}
			src, err := newResolver(c.String("region")).source(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			defer src.Close()

			out, err := newRecordWriter(formatText, c.App.Writer)
			if err != nil {
				return err
			}
			for {
				item, ok, err := src.Pull(c.Context)
				if err != nil {
					return errors.Join(fmt.Errorf("read %s: %w", c.Args().First(), err), out.Close())
				}
				if !ok {
					return out.Close()
				}
				if err := out.Write(item.Key, item.Value); err != nil {
					return err
				}
			}
		},
	}
}
