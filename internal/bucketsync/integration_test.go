//go:build integration

package bucketsync_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/andresuchdata/bucketsync/internal/bucketsync"
	"github.com/andresuchdata/bucketsync/internal/storage"
)

type minioSuite struct {
	suite.Suite
	endpoint string
	user     string
	password string
	admin    *miniogo.Client
}

func TestMinioIntegration(t *testing.T) {
	suite.Run(t, new(minioSuite))
}

func (s *minioSuite) SetupSuite() {
	ctx := context.Background()

	ctr, err := minio.Run(ctx, "minio/minio:latest", testcontainers.WithName("bucketsync-minio"))
	testcontainers.CleanupContainer(s.T(), ctr)
	s.Require().NoError(err)

	ep, err := ctr.ConnectionString(ctx)
	s.Require().NoError(err)

	s.endpoint = "http://" + ep
	s.user = ctr.Username
	s.password = ctr.Password

	s.admin, err = miniogo.New(ep, &miniogo.Options{
		Creds:  credentials.NewStaticV4(s.user, s.password, ""),
		Secure: false,
	})
	s.Require().NoError(err)
}

// newBucket creates an empty bucket, replacing any earlier one of that name.
func (s *minioSuite) newBucket(suffix string) string {
	name := fmt.Sprintf("it-%s", suffix)
	ctx := context.Background()
	exists, err := s.admin.BucketExists(ctx, name)
	s.Require().NoError(err)
	if exists {
		s.Require().NoError(s.admin.RemoveBucketWithOptions(ctx, name, miniogo.RemoveBucketOptions{ForceDelete: true}))
	}
	s.Require().NoError(s.admin.MakeBucket(ctx, name, miniogo.MakeBucketOptions{Region: "us-east-1"}))
	return name
}

func (s *minioSuite) client(bucket, backend string) *bucketsync.Client {
	profile := storage.ProfileS3C
	profile.Backend = backend
	profile.PageSize = 2

	return bucketsync.New(storage.Credentials{
		Endpoint:   s.endpoint,
		AccessKey:  s.user,
		SecretKey:  s.password,
		Region:     "us-east-1",
		BucketName: bucket,
	}, bucketsync.WithProfile(profile), bucketsync.WithLogger(zerolog.Nop()))
}

func (s *minioSuite) TestRoundTrip() {
	for _, backend := range []string{storage.BackendAWS, storage.BackendMinio} {
		s.Run(backend, func() {
			ctx := context.Background()
			bucket := s.newBucket(backend)
			c := s.client(bucket, backend)

			s.Require().NoError(c.CheckBuckets(ctx))

			objects := []bucketsync.Object{
				{Key: "a.xml", Body: []byte("<a/>")},
				{Key: "b.xml", Body: []byte("<b/>")},
				{Key: "c.txt", Body: []byte("c")},
				{Key: "nested/d.xml", Body: []byte("<d/>")},
				{Key: "e.bin", Body: []byte{0, 1, 2, 3}},
			}
			s.Require().NoError(c.UploadObjects(ctx, objects))

			keys, err := c.ListKeys(ctx, ".xml")
			s.Require().NoError(err)
			s.ElementsMatch([]string{"a.xml", "b.xml", "nested/d.xml"}, keys)

			dir := s.T().TempDir()
			result, err := c.DownloadMatching(ctx, bucketsync.DownloadRequest{
				LocalDir:            dir,
				Filter:              ".xml",
				DeleteAfterDownload: true,
				DeleteScope:         bucketsync.DeleteDownloaded,
			})
			s.Require().NoError(err)
			s.Equal(bucketsync.DownloadResult{Downloaded: 3, Deleted: 3}, result)

			body, err := os.ReadFile(filepath.Join(dir, "nested", "d.xml"))
			s.Require().NoError(err)
			s.Equal("<d/>", string(body))

			remaining, err := c.ListKeys(ctx, "")
			s.Require().NoError(err)
			s.ElementsMatch([]string{"c.txt", "e.bin"}, remaining)

			result, err = c.DownloadMatching(ctx, bucketsync.DownloadRequest{
				LocalDir:            dir,
				DeleteAfterDownload: true,
			})
			s.Require().NoError(err)
			s.Equal(bucketsync.DownloadResult{Downloaded: 2, Deleted: 2}, result)

			bin, err := os.ReadFile(filepath.Join(dir, "e.bin"))
			s.Require().NoError(err)
			s.Equal([]byte{0, 1, 2, 3}, bin)
		})
	}
}

func (s *minioSuite) TestUploadFiles() {
	ctx := context.Background()
	bucket := s.newBucket("files")
	c := s.client(bucket, storage.BackendAWS)

	path := filepath.Join(s.T().TempDir(), "report.csv")
	s.Require().NoError(os.WriteFile(path, []byte("a,b\n"), 0o644))

	s.Require().NoError(c.UploadFiles(ctx, []string{path}))

	obj, err := s.admin.StatObject(ctx, bucket, "report.csv", miniogo.StatObjectOptions{})
	s.Require().NoError(err)
	s.Equal(int64(4), obj.Size)
	s.Contains(obj.ContentType, "text/")
}

func (s *minioSuite) TestMissingBucket() {
	for _, backend := range []string{storage.BackendAWS, storage.BackendMinio} {
		s.Run(backend, func() {
			c := s.client("does-not-exist", backend)
			err := c.CheckBuckets(context.Background())
			s.ErrorIs(err, bucketsync.ErrBucketNotFound)
		})
	}
}

func (s *minioSuite) TestBadCredentials() {
	c := bucketsync.New(storage.Credentials{
		Endpoint:   s.endpoint,
		AccessKey:  "wrong",
		SecretKey:  "wrong-secret",
		BucketName: "any",
	}, bucketsync.WithLogger(zerolog.Nop()))

	err := c.CheckBuckets(context.Background())
	s.ErrorIs(err, storage.ErrAccessDenied)
}
