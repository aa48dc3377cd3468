// Package bucketsync moves files between a local directory and one bucket
// of an S3-compatible object store.
//
// Every workflow opens a fresh gateway, checks that the configured bucket
// exists and then runs sequentially, aborting on the first failure. Nothing
// is cached between calls.
package bucketsync

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/bucketsync/internal/storage"
	"github.com/andresuchdata/bucketsync/pkg/logger"
)

// Connector opens a gateway. storage.Connect is the default.
type Connector func(creds storage.Credentials, profile storage.Profile) (storage.Gateway, error)

// Client runs transfer workflows against the bucket named in its credentials.
type Client struct {
	creds   storage.Credentials
	profile storage.Profile
	connect Connector
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithProfile sets the connection profile. Defaults to storage.ProfileS3C.
func WithProfile(p storage.Profile) Option {
	return func(c *Client) { c.profile = p }
}

// WithConnector replaces storage.Connect.
func WithConnector(fn Connector) Option {
	return func(c *Client) { c.connect = fn }
}

// WithLogger sets the workflow logger. Defaults to logger.Log.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client for creds.
func New(creds storage.Credentials, opts ...Option) *Client {
	c := &Client{
		creds:   creds,
		profile: storage.ProfileS3C,
		connect: storage.Connect,
		log:     logger.Log,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("bucket", creds.BucketName).Str("profile", c.profile.Name).Logger()
	return c
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.creds.BucketName
}

// Connect opens a new gateway. No request is sent to the store.
func (c *Client) Connect() (storage.Gateway, error) {
	gw, err := c.connect(c.creds, c.profile)
	if err != nil {
		return nil, &Error{Op: "connect", Err: err}
	}
	return gw, nil
}

// EnsureBucketsExist fails with ErrBucketNotFound for the first name, in
// order, that the store does not list. An empty set never contacts the store.
func (c *Client) EnsureBucketsExist(ctx context.Context, gw storage.Gateway, names ...string) error {
	if len(names) == 0 {
		return nil
	}

	found, err := gw.ListBuckets(ctx)
	if err != nil {
		return &Error{Op: "ensure-buckets", Err: err}
	}

	existing := make(map[string]struct{}, len(found))
	for _, name := range found {
		existing[name] = struct{}{}
	}

	for _, name := range names {
		if _, ok := existing[name]; !ok {
			c.log.Error().Str("required", name).Msg("bucket not found on object store")
			return &Error{Op: "ensure-buckets", Bucket: name, Err: ErrBucketNotFound}
		}
	}
	return nil
}

// CheckBuckets connects and verifies names. With no names it checks the
// configured bucket.
func (c *Client) CheckBuckets(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = []string{c.creds.BucketName}
	}

	gw, err := c.Connect()
	if err != nil {
		return err
	}
	return c.EnsureBucketsExist(ctx, gw, names...)
}

// ListObjects returns a lazy pager over bucket. Each call starts a new
// enumeration; pages already consumed are never replayed.
func (c *Client) ListObjects(gw storage.Gateway, bucket string) storage.Pager {
	return gw.ListObjects(bucket)
}

// ListKeys returns the keys in the configured bucket that match filter.
func (c *Client) ListKeys(ctx context.Context, filter string) ([]string, error) {
	gw, err := c.open(ctx)
	if err != nil {
		return nil, err
	}

	var keys []string
	err = walk(ctx, c.ListObjects(gw, c.creds.BucketName), func(obj storage.ObjectInfo) error {
		if MatchesFilter(filter, obj.Key) {
			keys = append(keys, obj.Key)
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "list", Bucket: c.creds.BucketName, Err: err}
	}
	return keys, nil
}

// open connects and verifies the configured bucket.
func (c *Client) open(ctx context.Context) (storage.Gateway, error) {
	gw, err := c.Connect()
	if err != nil {
		return nil, err
	}
	if err := c.EnsureBucketsExist(ctx, gw, c.creds.BucketName); err != nil {
		return nil, err
	}
	return gw, nil
}

// walk calls fn for every object of every page, stopping at the first error.
// The pager is closed on return.
func walk(ctx context.Context, pager storage.Pager, fn func(storage.ObjectInfo) error) error {
	defer func() { _ = pager.Close() }()

	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if errors.Is(err, storage.ErrNoMorePages) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if err := fn(obj); err != nil {
				return err
			}
		}
	}
	return nil
}
