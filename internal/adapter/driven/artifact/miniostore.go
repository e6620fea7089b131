package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// DefaultPresignExpiry is how long a returned artifact URL stays valid.
const DefaultPresignExpiry = 7 * 24 * time.Hour

// minioAPI is the subset of *minio.Client the store needs, so tests can run
// without a MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Compile-time interface satisfaction checks.
var (
	_ driven.ArtifactStore = (*MinioStore)(nil)
	_ minioAPI             = (*minio.Client)(nil)
)

// MinioStore uploads artifacts to an S3-compatible bucket and returns
// presigned GET URLs.
type MinioStore struct {
	api    minioAPI
	bucket string
	expiry time.Duration
}

// NewMinioStore creates a store on a real *minio.Client.
func NewMinioStore(ctx context.Context, client *minio.Client, bucket string, expiry time.Duration) (*MinioStore, error) {
	return newMinioStoreWithAPI(ctx, client, bucket, expiry)
}

func newMinioStoreWithAPI(ctx context.Context, api minioAPI, bucket string, expiry time.Duration) (*MinioStore, error) {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	s := &MinioStore{api: api, bucket: bucket, expiry: expiry}

	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Save uploads data as name and returns a presigned download URL.
func (s *MinioStore) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	_, err := s.api.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload artifact %s: %w", name, err)
	}

	u, err := s.api.PresignedGetObject(ctx, s.bucket, name, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign artifact %s: %w", name, err)
	}
	return u.String(), nil
}
