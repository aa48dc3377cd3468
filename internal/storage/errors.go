package storage

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

// Sentinel errors for common gateway failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("object not found")

	// ErrAccessDenied indicates that the credentials may not access the resource
	ErrAccessDenied = errors.New("access denied")

	// ErrNoMorePages is returned by Pager.NextPage after the listing is exhausted
	ErrNoMorePages = errors.New("no more pages")
)

// Error represents a failed gateway call with the operation and resource it
// was made against.
type Error struct {
	Op     string
	Bucket string
	Key    string

	// Kind is one of the sentinel errors above, or nil when the failure
	// could not be classified.
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("storage.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("storage.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	default:
		return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() []error {
	if e.Kind != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Err}
}

func newError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Kind:   classify(err),
		Err:    err,
	}
}

// classify maps S3 error codes from either SDK to a sentinel.
func classify(err error) error {
	var code string

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	} else if resp := minio.ToErrorResponse(err); resp.Code != "" {
		code = resp.Code
	}

	switch code {
	case "NoSuchBucket":
		return ErrBucketNotFound
	case "NoSuchKey", "NotFound":
		return ErrObjectNotFound
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return ErrAccessDenied
	default:
		return nil
	}
}
