// internal/service/transfer_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/bucketsync/internal/bucketsync"
)

// ErrBusy is returned when no transfer slot frees up before the caller's
// context is done.
var ErrBusy = errors.New("too many transfers in progress")

type TransferService struct {
	client   *bucketsync.Client
	localDir string
	sem      *semaphore.Weighted
}

// NewTransferService wraps client. At most maxJobs downloads or uploads run
// at once; localDir is used when a download request names no directory.
func NewTransferService(client *bucketsync.Client, localDir string, maxJobs int) *TransferService {
	if maxJobs <= 0 {
		maxJobs = 1
	}
	return &TransferService{
		client:   client,
		localDir: localDir,
		sem:      semaphore.NewWeighted(int64(maxJobs)),
	}
}

// Bucket returns the bucket every transfer targets.
func (s *TransferService) Bucket() string {
	return s.client.Bucket()
}

// CheckBuckets verifies names exist, or the configured bucket if none given.
func (s *TransferService) CheckBuckets(ctx context.Context, names ...string) error {
	return s.client.CheckBuckets(ctx, names...)
}

// ListKeys returns keys in the configured bucket containing filter.
func (s *TransferService) ListKeys(ctx context.Context, filter string) ([]string, error) {
	return s.client.ListKeys(ctx, filter)
}

// Download runs DownloadMatching in a transfer slot.
func (s *TransferService) Download(ctx context.Context, req bucketsync.DownloadRequest) (bucketsync.DownloadResult, error) {
	if req.LocalDir == "" {
		req.LocalDir = s.localDir
	}

	var result bucketsync.DownloadResult
	err := s.withJob(ctx, "download", func(ctx context.Context) error {
		var err error
		result, err = s.client.DownloadMatching(ctx, req)
		return err
	})
	return result, err
}

// UploadFiles runs UploadFiles in a transfer slot.
func (s *TransferService) UploadFiles(ctx context.Context, paths []string) error {
	return s.withJob(ctx, "upload-files", func(ctx context.Context) error {
		return s.client.UploadFiles(ctx, paths)
	})
}

// UploadObjects runs UploadObjects in a transfer slot.
func (s *TransferService) UploadObjects(ctx context.Context, objects []bucketsync.Object) error {
	return s.withJob(ctx, "upload-objects", func(ctx context.Context) error {
		return s.client.UploadObjects(ctx, objects)
	})
}

// withJob executes fn while holding a transfer slot.
func (s *TransferService) withJob(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		log.Warn().Err(err).Str("job", name).Msg("could not acquire transfer slot")
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	defer s.sem.Release(1)

	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("job", name).Str("bucket", s.client.Bucket()).Msg("transfer failed")
		return err
	}
	return nil
}
