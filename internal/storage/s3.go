package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of *s3.Client used by S3Gateway.
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Gateway implements Gateway on top of aws-sdk-go-v2.
type S3Gateway struct {
	client   S3API
	pageSize int32
}

// NewS3Gateway builds an aws-sdk-go-v2 client with static credentials for
// an S3-compatible endpoint.
func NewS3Gateway(creds Credentials, profile Profile) (*S3Gateway, error) {
	switch profile.SignatureVersion {
	case "", "v4":
	default:
		return nil, fmt.Errorf("signature version %q is not supported by the %s backend", profile.SignatureVersion, BackendAWS)
	}

	endpoint, err := normalizeEndpoint(creds.Endpoint)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(profile.ResolveRegion(creds)),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint.String())
		o.UsePathStyle = profile.UsePathStyle
	})

	return NewS3GatewayWithClient(client, profile.pageSize()), nil
}

// NewS3GatewayWithClient wraps an existing client.
func NewS3GatewayWithClient(client S3API, pageSize int) *S3Gateway {
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}
	return &S3Gateway{client: client, pageSize: int32(pageSize)}
}

// ListBuckets returns the names of every bucket visible to the credentials.
func (g *S3Gateway) ListBuckets(ctx context.Context) ([]string, error) {
	var names []string

	paginator := s3.NewListBucketsPaginator(g.client, &s3.ListBucketsInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, newError("list-buckets", "", "", err)
		}
		for _, b := range out.Buckets {
			names = append(names, aws.ToString(b.Name))
		}
	}
	return names, nil
}

// ListObjects returns a lazy pager over every object in bucket.
func (g *S3Gateway) ListObjects(bucket string) Pager {
	return &s3Pager{
		bucket: bucket,
		paginator: s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int32(g.pageSize),
		}),
	}
}

// GetObject opens the body of bucket/key.
func (g *S3Gateway) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, newError("get-object", bucket, key, err)
	}
	return out.Body, nil
}

// PutObject stores body under bucket/key, replacing any existing object.
func (g *S3Gateway) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType(body)),
	})
	if err != nil {
		return newError("put-object", bucket, key, err)
	}
	return nil
}

// DeleteObject removes bucket/key.
func (g *S3Gateway) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return newError("delete-object", bucket, key, err)
	}
	return nil
}

var _ Gateway = (*S3Gateway)(nil)

type s3Pager struct {
	bucket    string
	paginator *s3.ListObjectsV2Paginator
}

func (p *s3Pager) HasMorePages() bool {
	return p.paginator.HasMorePages()
}

// Close is a no-op; each page is a standalone request.
func (p *s3Pager) Close() error {
	return nil
}

func (p *s3Pager) NextPage(ctx context.Context) (*Page, error) {
	if !p.paginator.HasMorePages() {
		return nil, ErrNoMorePages
	}

	out, err := p.paginator.NextPage(ctx)
	if err != nil {
		return nil, newError("list-objects", p.bucket, "", err)
	}

	page := &Page{Contents: make([]ObjectInfo, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		page.Contents = append(page.Contents, ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}
	return page, nil
}
