package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ObjectInfo represents metadata for a remote object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// Page is one bounded slice of a bucket listing.
type Page struct {
	Contents []ObjectInfo
}

// Pager walks a bucket listing page by page. Pages are fetched lazily from
// the store; a Pager is single-pass and a fresh one starts a fresh listing.
// Close releases the listing and is safe to call more than once; callers
// that stop before the last page must still call it.
type Pager interface {
	HasMorePages() bool
	NextPage(ctx context.Context) (*Page, error)
	Close() error
}

// Gateway captures the raw S3-compatible operations the transfer workflows need.
type Gateway interface {
	ListBuckets(ctx context.Context) ([]string, error)
	ListObjects(bucket string) Pager
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Credentials encapsulates the connection info for one bucket on an
// S3-compatible store.
type Credentials struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Region     string
	BucketName string
}

// Backend names accepted by Profile.Backend.
const (
	BackendAWS   = "aws"
	BackendMinio = "minio"
)

const (
	defaultRegion   = "us-east-1"
	defaultPageSize = 1000
)

// Profile holds the connection defaults that are not part of the credentials.
type Profile struct {
	Name string
	// Region is used when the credentials carry none, or always when
	// FixedRegion is set.
	Region           string
	FixedRegion      bool
	APIVersion       string
	SignatureVersion string
	UsePathStyle     bool
	Backend          string
	PageSize         int
}

var (
	// ProfileHelperS3 always talks to us-west-2, whatever region the
	// credentials name.
	ProfileHelperS3 = Profile{
		Name:             "helpers3",
		Region:           "us-west-2",
		FixedRegion:      true,
		APIVersion:       "latest",
		SignatureVersion: "v4",
		UsePathStyle:     true,
		Backend:          BackendAWS,
		PageSize:         defaultPageSize,
	}

	// ProfileS3C takes the region from the credentials.
	ProfileS3C = Profile{
		Name:             "s3c",
		Region:           defaultRegion,
		APIVersion:       "latest",
		SignatureVersion: "v4",
		UsePathStyle:     true,
		Backend:          BackendAWS,
		PageSize:         defaultPageSize,
	}
)

// ProfileByName returns the built-in profile called name.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileS3C.Name:
		return ProfileS3C, nil
	case ProfileHelperS3.Name:
		return ProfileHelperS3, nil
	default:
		return Profile{}, fmt.Errorf("unknown connection profile %q", name)
	}
}

// ResolveRegion returns the region a connection built from creds uses.
func (p Profile) ResolveRegion(creds Credentials) string {
	region := strings.TrimSpace(creds.Region)
	if p.FixedRegion || region == "" {
		region = p.Region
	}
	if region == "" {
		region = defaultRegion
	}
	return region
}

func (p Profile) pageSize() int {
	if p.PageSize <= 0 || p.PageSize > defaultPageSize {
		return defaultPageSize
	}
	return p.PageSize
}

func (p Profile) validate() error {
	switch p.APIVersion {
	case "", "latest":
	default:
		return fmt.Errorf("unsupported api version %q", p.APIVersion)
	}
	return nil
}

// Connect builds a gateway for creds using the backend named by profile.
// No request is sent; bad credentials surface on first use.
func Connect(creds Credentials, profile Profile) (Gateway, error) {
	if err := profile.validate(); err != nil {
		return nil, err
	}

	switch profile.Backend {
	case "", BackendAWS:
		return NewS3Gateway(creds, profile)
	case BackendMinio:
		return NewMinioGateway(creds, profile)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", profile.Backend)
	}
}

// normalizeEndpoint makes sure endpoint carries a scheme, defaulting to https.
func normalizeEndpoint(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint must be provided")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + strings.TrimPrefix(endpoint, "//")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	return u, nil
}

func contentType(body []byte) string {
	return mimetype.Detect(body).String()
}
