// Package objectstore issues download links for comment attachments kept in
// an S3-compatible bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/phrazzld/taskflow-api/internal/config"
)

// ErrInvalidPath is returned for attachment paths that cannot name an object.
var ErrInvalidPath = errors.New("invalid attachment path")

// MinioPresigner signs time-limited GET URLs for objects in one bucket.
// Signing is local; no request reaches the storage server.
type MinioPresigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	logger *slog.Logger
}

// NewMinioPresigner returns nil and no error when storage is not configured.
func NewMinioPresigner(cfg config.StorageConfig, logger *slog.Logger) (*MinioPresigner, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		// A fixed region avoids a bucket location lookup before signing.
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return &MinioPresigner{
		client: client,
		bucket: cfg.Bucket,
		ttl:    cfg.PresignTTL,
		logger: logger.With("component", "attachment_presigner", "bucket", cfg.Bucket),
	}, nil
}

// PresignedURL returns a download URL for the object at attachmentPath.
func (p *MinioPresigner) PresignedURL(ctx context.Context, attachmentPath string) (string, error) {
	object, err := objectName(attachmentPath)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(object)))

	u, err := p.client.PresignedGetObject(ctx, p.bucket, object, p.ttl, params)
	if err != nil {
		p.logger.Warn("failed to presign attachment", "object", object, "error", err)
		return "", fmt.Errorf("presign %s: %w", object, err)
	}
	return u.String(), nil
}

// objectName cleans a stored attachment path into an object key.
func objectName(attachmentPath string) (string, error) {
	trimmed := strings.TrimSpace(attachmentPath)
	if trimmed == "" {
		return "", ErrInvalidPath
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
