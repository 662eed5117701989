package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Store backs the table by any S3-compatible store that supports
// conditional writes (If-None-Match), which the log commit depends on.
type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	// minio-go expects host:port, not a full URL.
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimPrefix(endpoint, "https://")
		secure = true
	} else if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.mapError(err)
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, s.mapError(err)
	}

	return obj, &ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         strings.Trim(stat.ETag, "\""),
		LastModified: stat.LastModified,
		ContentType:  stat.ContentType,
	}, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         strings.Trim(stat.ETag, "\""),
		LastModified: stat.LastModified,
		ContentType:  stat.ContentType,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts *PutOptions) (*ObjectInfo, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, s.putOptions(opts))
	if err != nil {
		return nil, s.mapError(err)
	}
	return &ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, "\""),
		LastModified: info.LastModified,
	}, nil
}

func (s *S3Store) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64, opts *PutOptions) (*ObjectInfo, error) {
	putOpts := s.putOptions(opts)
	putOpts.SetMatchETagExcept("*")

	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, putOpts)
	if err != nil {
		mapped := s.mapError(err)
		if errors.Is(mapped, ErrAlreadyExists) || isPrecondition(err) {
			return nil, ErrAlreadyExists
		}
		return nil, mapped
	}
	return &ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, "\""),
		LastModified: info.LastModified,
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	listOpts := minio.ListObjectsOptions{}
	maxKeys := 1000
	if opts != nil {
		listOpts.Prefix = opts.Prefix
		listOpts.StartAfter = opts.Marker
		if opts.MaxKeys > 0 {
			listOpts.MaxKeys = opts.MaxKeys
			maxKeys = opts.MaxKeys
		}
	}

	result := &ListResult{}
	for obj := range s.client.ListObjects(ctx, s.bucket, listOpts) {
		if obj.Err != nil {
			return nil, s.mapError(obj.Err)
		}
		result.Objects = append(result.Objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         strings.Trim(obj.ETag, "\""),
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
		})
		if len(result.Objects) >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = obj.Key
			break
		}
	}
	return result, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (s *S3Store) putOptions(opts *PutOptions) minio.PutObjectOptions {
	putOpts := minio.PutObjectOptions{}
	if opts != nil && opts.ContentType != "" {
		putOpts.ContentType = opts.ContentType
	}
	return putOpts
}

func (s *S3Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	errResp := minio.ToErrorResponse(err)
	switch errResp.Code {
	case "NoSuchKey":
		return ErrNotFound
	}
	switch errResp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusPreconditionFailed, http.StatusConflict:
		return ErrAlreadyExists
	}
	return err
}

func isPrecondition(err error) bool {
	errResp := minio.ToErrorResponse(err)
	return errResp.Code == "PreconditionFailed" ||
		errResp.StatusCode == http.StatusPreconditionFailed
}
