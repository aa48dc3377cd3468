package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/bucketsync/internal/bucketsync"
)

func (r *runner) check(c *cli.Context) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		names = []string{r.client.Bucket()}
	}

	if err := r.client.CheckBuckets(c.Context, names...); err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintf(c.App.Writer, "%s: ok\n", name)
	}
	return nil
}

func (r *runner) list(c *cli.Context) error {
	keys, err := r.client.ListKeys(c.Context, c.String("filter"))
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(c.App.Writer, key)
	}
	return nil
}

func (r *runner) download(c *cli.Context) error {
	scope, err := bucketsync.ParseDeleteScope(c.String("delete-scope"))
	if err != nil {
		return err
	}

	result, err := r.client.DownloadMatching(c.Context, bucketsync.DownloadRequest{
		LocalDir:            c.String("dir"),
		DeleteAfterDownload: c.Bool("delete"),
		Filter:              c.String("filter"),
		DeleteScope:         scope,
	})
	if err != nil {
		return err
	}

	if !result.Any() {
		fmt.Fprintln(c.App.Writer, "no matching objects")
	}
	fmt.Fprintf(c.App.Writer, "downloaded %d, deleted %d\n", result.Downloaded, result.Deleted)
	return nil
}

func (r *runner) uploadFiles(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("upload-files needs at least one PATH")
	}

	if err := r.client.UploadFiles(c.Context, paths); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "uploaded %d files\n", len(paths))
	return nil
}

func (r *runner) uploadObjects(c *cli.Context) error {
	var in io.Reader
	if name := c.String("manifest"); name == "-" {
		in = c.App.Reader
	} else {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("open manifest: %w", err)
		}
		defer f.Close()
		in = f
	}

	objects, err := readManifest(in)
	if err != nil {
		return err
	}

	if err := r.client.UploadObjects(c.Context, objects); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "uploaded %d objects\n", len(objects))
	return nil
}
