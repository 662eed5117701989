// Package objectstore abstracts the object storage that holds table data
// files and the transaction log. The log's optimistic commit relies on
// PutIfAbsent: writing version N of the log must fail if another writer
// got there first.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrAlreadyExists = errors.New("object already exists")
)

// IsConflict reports whether err indicates a conditional write lost the race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
}

type PutOptions struct {
	ContentType string
}

type ListOptions struct {
	Prefix  string
	Marker  string
	MaxKeys int
}

type ListResult struct {
	Objects     []ObjectInfo
	NextMarker  string
	IsTruncated bool
}

// Store is the minimal object storage contract the table engine needs.
// PutIfAbsent must be atomic: of several concurrent writers to the same
// key exactly one succeeds and the rest see ErrAlreadyExists.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, opts *PutOptions) (*ObjectInfo, error)
	PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64, opts *PutOptions) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, opts *ListOptions) (*ListResult, error)
}
