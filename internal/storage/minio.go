package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioGateway implements Gateway on top of minio-go. Unlike S3Gateway it
// can sign requests with signature v2 for older S3-compatible stores.
type MinioGateway struct {
	client   *minio.Client
	pageSize int
}

// NewMinioGateway builds a minio-go client for creds.
func NewMinioGateway(creds Credentials, profile Profile) (*MinioGateway, error) {
	endpoint, err := normalizeEndpoint(creds.Endpoint)
	if err != nil {
		return nil, err
	}

	var provider *credentials.Credentials
	switch profile.SignatureVersion {
	case "", "v4":
		provider = credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, "")
	case "v2":
		provider = credentials.NewStaticV2(creds.AccessKey, creds.SecretKey, "")
	default:
		return nil, fmt.Errorf("signature version %q is not supported by the %s backend", profile.SignatureVersion, BackendMinio)
	}

	lookup := minio.BucketLookupDNS
	if profile.UsePathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:        provider,
		Secure:       endpoint.Scheme == "https",
		Region:       profile.ResolveRegion(creds),
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioGateway{client: client, pageSize: profile.pageSize()}, nil
}

// ListBuckets returns the names of every bucket visible to the credentials.
func (g *MinioGateway) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := g.client.ListBuckets(ctx)
	if err != nil {
		return nil, newError("list-buckets", "", "", err)
	}

	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

// ListObjects returns a lazy pager over every object in bucket. The listing
// starts on the first NextPage call and is bound to that call's context.
func (g *MinioGateway) ListObjects(bucket string) Pager {
	return &minioPager{
		client:   g.client,
		bucket:   bucket,
		pageSize: g.pageSize,
	}
}

// GetObject opens the body of bucket/key. The object is stat'ed first so a
// missing key fails here rather than on the first Read.
func (g *MinioGateway) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, newError("get-object", bucket, key, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, newError("get-object", bucket, key, err)
	}
	return obj, nil
}

// PutObject stores body under bucket/key, replacing any existing object.
func (g *MinioGateway) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	_, err := g.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType(body)})
	if err != nil {
		return newError("put-object", bucket, key, err)
	}
	return nil
}

// DeleteObject removes bucket/key.
func (g *MinioGateway) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := g.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return newError("delete-object", bucket, key, err)
	}
	return nil
}

var _ Gateway = (*MinioGateway)(nil)

// minioPager cuts minio's object channel into pages of at most pageSize
// objects. minio-go follows continuation tokens itself.
type minioPager struct {
	client   *minio.Client
	bucket   string
	pageSize int

	objects <-chan minio.ObjectInfo
	cancel  context.CancelFunc
	done    bool
}

func (p *minioPager) HasMorePages() bool {
	return !p.done
}

func (p *minioPager) NextPage(ctx context.Context) (*Page, error) {
	if p.done {
		return nil, ErrNoMorePages
	}

	if p.objects == nil {
		listCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		p.objects = p.client.ListObjects(listCtx, p.bucket, minio.ListObjectsOptions{
			Recursive: true,
			MaxKeys:   p.pageSize,
		})
	}

	page := &Page{Contents: make([]ObjectInfo, 0, p.pageSize)}
	for len(page.Contents) < p.pageSize {
		var (
			obj minio.ObjectInfo
			ok  bool
		)
		select {
		case obj, ok = <-p.objects:
		case <-ctx.Done():
			p.finish()
			return nil, newError("list-objects", p.bucket, "", ctx.Err())
		}

		if !ok {
			p.finish()
			break
		}
		if obj.Err != nil {
			p.finish()
			return nil, newError("list-objects", p.bucket, "", obj.Err)
		}

		page.Contents = append(page.Contents, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}
	return page, nil
}

// Close stops minio's listing goroutine when the walk ends early.
func (p *minioPager) Close() error {
	p.finish()
	return nil
}

// finish cancels the listing and drains the channel until minio closes it.
// After a cancel minio still sends ctx.Err() before closing, so an undrained
// channel would keep its goroutine blocked.
func (p *minioPager) finish() {
	p.done = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.objects != nil {
		for range p.objects {
		}
		p.objects = nil
	}
}
