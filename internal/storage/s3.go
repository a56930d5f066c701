package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Backend reads objects from one bucket.
type S3Backend struct {
	client *minio.Client
	bucket string
}

// NewS3Backend creates a client for cfg. No request is made until Open.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Backend{client: client, bucket: cfg.Bucket}, nil
}

func (b *S3Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	key := strings.TrimLeft(path, "/")
	if key == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3 object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before any read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, b.bucket, key)
		}
		return nil, fmt.Errorf("stat s3 object: %w", err)
	}
	return obj, nil
}

// Ping checks that the bucket is reachable.
func (b *S3Backend) Ping(ctx context.Context) error {
	ok, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check s3 bucket: %w", err)
	}
	if !ok {
		return fmt.Errorf("s3 bucket %q does not exist", b.bucket)
	}
	return nil
}
