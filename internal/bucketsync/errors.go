package bucketsync

import (
	"errors"
	"fmt"

	"github.com/andresuchdata/bucketsync/internal/storage"
)

var (
	// ErrBucketNotFound indicates a required bucket is not visible to the
	// credentials. It is the same value as storage.ErrBucketNotFound.
	ErrBucketNotFound = storage.ErrBucketNotFound

	// ErrSourceNotFound indicates a local file named for upload does not exist.
	ErrSourceNotFound = errors.New("upload source not found")

	// ErrWriteFailed indicates a downloaded object could not be written locally.
	ErrWriteFailed = errors.New("local write failed")
)

// Error describes the step of a transfer workflow that aborted it.
type Error struct {
	// Op is the workflow step, e.g. "ensure-buckets", "download", "upload".
	Op     string
	Bucket string
	Key    string
	// Path is the local file involved, if any.
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := "bucketsync." + e.Op
	if e.Bucket != "" {
		if e.Key != "" {
			msg += fmt.Sprintf(" %s/%s", e.Bucket, e.Key)
		} else {
			msg += fmt.Sprintf(" bucket %q", e.Bucket)
		}
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
