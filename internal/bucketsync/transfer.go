package bucketsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/bucketsync/internal/storage"
)

// DeleteScope selects which objects DownloadMatching removes afterwards.
type DeleteScope int

const (
	// DeleteAll removes every object found by a second listing of the
	// bucket, whether or not it matched the filter.
	DeleteAll DeleteScope = iota
	// DeleteDownloaded removes only objects downloaded by the same call.
	DeleteDownloaded
)

func (s DeleteScope) String() string {
	switch s {
	case DeleteAll:
		return "all"
	case DeleteDownloaded:
		return "downloaded"
	default:
		return fmt.Sprintf("DeleteScope(%d)", int(s))
	}
}

// ParseDeleteScope parses "all" (or "") and "downloaded".
func ParseDeleteScope(s string) (DeleteScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return DeleteAll, nil
	case "downloaded":
		return DeleteDownloaded, nil
	default:
		return DeleteAll, fmt.Errorf("unknown delete scope %q", s)
	}
}

// DownloadRequest parameterises DownloadMatching.
type DownloadRequest struct {
	LocalDir            string
	DeleteAfterDownload bool
	// Filter is a substring every downloaded key must contain. Empty
	// downloads everything.
	Filter      string
	DeleteScope DeleteScope
}

// DownloadResult counts what DownloadMatching did.
type DownloadResult struct {
	Downloaded int
	Deleted    int
}

// Any reports whether at least one object was downloaded.
func (r DownloadResult) Any() bool {
	return r.Downloaded > 0
}

// Object is an in-memory object to upload.
type Object struct {
	Key  string
	Body []byte
}

// DownloadMatching writes every object whose key matches req.Filter to
// req.LocalDir/<key>, then optionally deletes objects from the bucket.
//
// Deletion lists the bucket again rather than reusing the first listing, so
// with DeleteAll it also removes objects that were skipped by the filter or
// that appeared after the download pass. The returned result is valid up to
// the point of failure when err is non-nil.
func (c *Client) DownloadMatching(ctx context.Context, req DownloadRequest) (DownloadResult, error) {
	var result DownloadResult

	gw, err := c.open(ctx)
	if err != nil {
		return result, err
	}
	bucket := c.creds.BucketName

	var downloaded map[string]struct{}
	if req.DeleteScope == DeleteDownloaded {
		downloaded = make(map[string]struct{})
	}

	err = walk(ctx, c.ListObjects(gw, bucket), func(obj storage.ObjectInfo) error {
		if !MatchesFilter(req.Filter, obj.Key) {
			c.log.Debug().Str("key", obj.Key).Str("filter", req.Filter).Msg("skipping object")
			return nil
		}

		body, err := fetch(ctx, gw, bucket, obj.Key)
		if err != nil {
			return &Error{Op: "download", Bucket: bucket, Key: obj.Key, Err: err}
		}

		path := filepath.Join(req.LocalDir, obj.Key)
		if err := writeFile(path, body); err != nil {
			c.log.Error().Err(err).Str("path", path).Msg("failed writing downloaded object")
			return &Error{Op: "download", Bucket: bucket, Key: obj.Key, Path: path, Err: fmt.Errorf("%w: %w", ErrWriteFailed, err)}
		}

		c.log.Debug().Str("key", obj.Key).Str("path", path).Int("bytes", len(body)).Msg("downloaded object")
		result.Downloaded++
		if downloaded != nil {
			downloaded[obj.Key] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return result, wrapList(bucket, err)
	}

	if req.DeleteAfterDownload {
		err = walk(ctx, c.ListObjects(gw, bucket), func(obj storage.ObjectInfo) error {
			if downloaded != nil {
				if _, ok := downloaded[obj.Key]; !ok {
					return nil
				}
			}
			if err := gw.DeleteObject(ctx, bucket, obj.Key); err != nil {
				return &Error{Op: "delete", Bucket: bucket, Key: obj.Key, Err: err}
			}
			result.Deleted++
			return nil
		})
		if err != nil {
			return result, wrapList(bucket, err)
		}
	}

	c.log.Info().
		Str("dir", req.LocalDir).
		Str("filter", req.Filter).
		Int("downloaded", result.Downloaded).
		Int("deleted", result.Deleted).
		Msg("download finished")
	return result, nil
}

// UploadFiles uploads each local file under its base name. The batch stops
// at the first path that does not exist; earlier files stay uploaded.
func (c *Client) UploadFiles(ctx context.Context, paths []string) error {
	gw, err := c.open(ctx)
	if err != nil {
		return err
	}
	bucket := c.creds.BucketName

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				c.log.Error().Str("path", path).Msg("upload failed - file not found")
				return &Error{Op: "upload", Bucket: bucket, Path: path, Err: ErrSourceNotFound}
			}
			return &Error{Op: "upload", Bucket: bucket, Path: path, Err: err}
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return &Error{Op: "upload", Bucket: bucket, Path: path, Err: err}
		}

		key := filepath.Base(path)
		if err := gw.PutObject(ctx, bucket, key, body); err != nil {
			return &Error{Op: "upload", Bucket: bucket, Key: key, Path: path, Err: err}
		}
		c.log.Debug().Str("path", path).Str("key", key).Int("bytes", len(body)).Msg("uploaded file")
	}

	c.log.Info().Int("files", len(paths)).Msg("upload finished")
	return nil
}

// UploadObjects uploads each body under its key verbatim, stopping at the
// first failure.
func (c *Client) UploadObjects(ctx context.Context, objects []Object) error {
	gw, err := c.open(ctx)
	if err != nil {
		return err
	}
	bucket := c.creds.BucketName

	for _, obj := range objects {
		if err := gw.PutObject(ctx, bucket, obj.Key, obj.Body); err != nil {
			return &Error{Op: "upload", Bucket: bucket, Key: obj.Key, Err: err}
		}
		c.log.Debug().Str("key", obj.Key).Int("bytes", len(obj.Body)).Msg("uploaded object")
	}

	c.log.Info().Int("objects", len(objects)).Msg("upload finished")
	return nil
}

// fetch buffers the whole body of bucket/key.
func fetch(ctx context.Context, gw storage.Gateway, bucket, key string) ([]byte, error) {
	rc, err := gw.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func writeFile(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

// wrapList tags listing failures; errors from fn are already tagged.
func wrapList(bucket string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: "list", Bucket: bucket, Err: err}
}
