package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/garethgeorge/kmerge/internal/logging"
	"github.com/garethgeorge/kmerge/internal/objstore"
	"github.com/urfave/cli/v2"
)

// newS3Service connects to S3 the first time an s3:// path is used. Tests replace it.
var newS3Service = func(ctx context.Context, region string) (objstore.S3Service, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return objstore.NewAWSS3Service(s3.NewFromConfig(cfg)), nil
}

var (
	regionFlag = &cli.StringFlag{
		Name:  "region",
		Usage: "AWS region used for s3:// paths, defaults to the AWS config",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Value: "warn",
		Usage: "one of debug, info, warn, error",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "kmerge",
		Usage: "Merge sorted runs into one sorted stream",
		Flags: []cli.Flag{regionFlag, logLevelFlag},
		Before: func(ctx *cli.Context) error {
			level, err := logging.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			logging.SetLevel(level)
			slog.SetDefault(slog.New(logging.NewTextHandler(ctx.App.ErrWriter)))
			return nil
		},
		Commands: []*cli.Command{mergeCommand(), packCommand(), catCommand()},
	}
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
