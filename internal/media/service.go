// Package media stores uploaded paragraph images in S3-compatible storage.
package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"folio/api/internal/util"
)

// Allowed content types for paragraph images.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

const maxUploadSize = 10 << 20 // 10 MiB

// Service wraps a MinIO client for a single bucket.
type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the storage endpoint and ensures the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create media client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check media bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create media bucket: %w", err)
		}
	}

	return &Service{client: client, bucket: bucket}, nil
}

// Upload stores the object and returns its key. size must be the exact
// content length; the caller enforces the request body limit.
func (s *Service) Upload(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	ext, ok := allowedTypes[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("unsupported content type %s", contentType)
	}
	if size <= 0 || size > maxUploadSize {
		return "", fmt.Errorf("upload size out of range")
	}

	key := path.Join(time.Now().UTC().Format("2006/01"), util.NewID("img")+ext)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put media object: %w", err)
	}
	return key, nil
}

// PresignedURL returns a time-limited GET URL for an uploaded object.
func (s *Service) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Hour
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign media object: %w", err)
	}
	return u.String(), nil
}

// Delete removes an uploaded object.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove media object: %w", err)
	}
	return nil
}

// MaxUploadSize reports the upload size cap in bytes.
func MaxUploadSize() int64 {
	return maxUploadSize
}
