// Package storage uploads message attachments to an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MediaStore is implemented by MinIOClient
type MediaStore interface {
	Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader, size int64) (string, error)
}

type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient connects to endpoint and makes sure bucket exists
func NewMinIOClient(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	slog.Info("Connected to MinIO", "endpoint", endpoint, "bucket", bucket)
	return &MinIOClient{client: client, bucket: bucket}, nil
}

// Upload stores r under a fresh object name and returns its URL
func (m *MinIOClient) Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader, size int64) (string, error) {
	objectName := ObjectName(ownerID, filename)
	_, err := m.client.PutObject(ctx, m.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	u := *m.client.EndpointURL()
	u.Path = path.Join("/", m.bucket, objectName)
	return u.String(), nil
}

// ObjectName places uploads under media/<owner>/ with a random name that
// keeps the original extension
func ObjectName(ownerID, filename string) string {
	if ownerID == "" {
		ownerID = "anonymous"
	}
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	return fmt.Sprintf("media/%s/%s%s", ownerID, uuid.NewString(), ext)
}
