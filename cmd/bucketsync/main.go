package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/bucketsync/internal/bucketsync"
	"github.com/andresuchdata/bucketsync/internal/config"
	"github.com/andresuchdata/bucketsync/pkg/logger"
)

func main() {
	cfg := config.Load()

	if err := newApp(cfg, nil).Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("bucketsync failed")
	}
}

// runner carries the client built by the Before hook to every command.
type runner struct {
	cfg     *config.Config
	connect bucketsync.Connector
	client  *bucketsync.Client
}

// newApp builds the CLI. connect replaces storage.Connect when non-nil.
func newApp(cfg *config.Config, connect bucketsync.Connector) *cli.App {
	r := &runner{cfg: cfg, connect: connect}

	return &cli.App{
		Name:  "bucketsync",
		Usage: "Move files between a local directory and an S3-compatible bucket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "endpoint", Usage: "Object store endpoint URL", Value: cfg.Store.Endpoint},
			&cli.StringFlag{Name: "access-key", Usage: "Access key ID", Value: cfg.Store.AccessKey},
			&cli.StringFlag{Name: "secret-key", Usage: "Secret access key", Value: cfg.Store.SecretKey},
			&cli.StringFlag{Name: "region", Usage: "Region, ignored by the helpers3 profile", Value: cfg.Store.Region},
			&cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "Bucket to operate on", Value: cfg.Store.Bucket},
			&cli.StringFlag{Name: "profile", Usage: "Connection profile (s3c or helpers3)", Value: cfg.Store.Profile},
			&cli.StringFlag{Name: "backend", Usage: "Client library (aws or minio)", Value: cfg.Store.Backend},
			&cli.StringFlag{Name: "signature-version", Usage: "Request signing (v4, or v2 with the minio backend)", Value: cfg.Store.SignatureVersion},
			&cli.BoolFlag{Name: "path-style", Usage: "Use path-style bucket addressing", Value: cfg.Store.UsePathStyle},
			&cli.IntFlag{Name: "page-size", Usage: "Objects per listing page (max 1000)", Value: cfg.Store.PageSize},
			&cli.StringFlag{Name: "log-level", Usage: "Log level", Value: cfg.Log.Level},
			&cli.StringFlag{Name: "log-format", Usage: "Log format (console or json)", Value: cfg.Log.Format},
		},
		Before: r.setup,
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Verify that buckets exist (defaults to --bucket)",
				ArgsUsage: "[BUCKET...]",
				Action:    r.check,
			},
			{
				Name:  "list",
				Usage: "List object keys in the bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "Only keys containing this substring"},
				},
				Action: r.list,
			},
			{
				Name:  "download",
				Usage: "Download matching objects into a local directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Local directory", Value: cfg.Transfer.LocalDir},
					&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "Only keys containing this substring"},
					&cli.BoolFlag{Name: "delete", Usage: "Delete objects from the bucket after downloading"},
					&cli.StringFlag{Name: "delete-scope", Usage: "What --delete removes: all or downloaded", Value: bucketsync.DeleteAll.String()},
				},
				Action: r.download,
			},
			{
				Name:      "upload-files",
				Usage:     "Upload local files under their base names",
				ArgsUsage: "PATH...",
				Action:    r.uploadFiles,
			},
			{
				Name:  "upload-objects",
				Usage: "Upload in-memory objects described by a JSON manifest",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "manifest", Aliases: []string{"m"}, Usage: "Manifest file, or - for stdin", Required: true},
				},
				Action: r.uploadObjects,
			},
		},
	}
}

func (r *runner) setup(c *cli.Context) error {
	logger.SetLevel(c.String("log-level"))
	if strings.EqualFold(c.String("log-format"), "json") {
		logger.SetJSON(c.App.ErrWriter)
	}

	store := config.StoreConfig{
		Endpoint:         c.String("endpoint"),
		AccessKey:        c.String("access-key"),
		SecretKey:        c.String("secret-key"),
		Region:           c.String("region"),
		Bucket:           c.String("bucket"),
		Profile:          strings.ToLower(c.String("profile")),
		Backend:          strings.ToLower(c.String("backend")),
		SignatureVersion: strings.ToLower(c.String("signature-version")),
		UsePathStyle:     c.Bool("path-style"),
		PageSize:         c.Int("page-size"),
	}
	if store.Bucket == "" {
		return fmt.Errorf("a bucket is required (--bucket or S3_BUCKET)")
	}

	profile, err := store.ConnectionProfile()
	if err != nil {
		return err
	}

	opts := []bucketsync.Option{bucketsync.WithProfile(profile)}
	if r.connect != nil {
		opts = append(opts, bucketsync.WithConnector(r.connect))
	}
	r.client = bucketsync.New(store.Credentials(), opts...)
	return nil
}
