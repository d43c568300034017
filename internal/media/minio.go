package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage keeps uploads in an S3-compatible bucket and records their object URL.
type MinioStorage struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinioStorage connects and creates bucket when it is missing.
func NewMinioStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &MinioStorage{
		client: client,
		bucket: bucket,
		base:   strings.TrimRight(client.EndpointURL().String(), "/") + "/" + bucket + "/",
	}, nil
}

func (m *MinioStorage) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if _, err := m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return m.base + key, nil
}

func (m *MinioStorage) Delete(ctx context.Context, publicPath string) error {
	key, ok := strings.CutPrefix(publicPath, m.base)
	if !ok || key == "" {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
