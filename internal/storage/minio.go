package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"poetry-tutor/internal/config"
)

type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewMinIOStore devuelve (nil, nil) si MINIO_ENDPOINT no está definido.
func NewMinIOStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*MinIOStore, error) {
	endpoint := strings.TrimSpace(cfg.MinIOEndpoint)
	if endpoint == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinIOBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinIOBucket, err)
		}
		logger.Info("minio bucket created", zap.String("bucket", cfg.MinIOBucket))
	}

	publicURL := strings.TrimRight(strings.TrimSpace(cfg.MinIOPublicURL), "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.MinIOUseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint
	}
	return &MinIOStore{
		client:    client,
		bucket:    cfg.MinIOBucket,
		publicURL: publicURL,
		logger:    logger,
	}, nil
}

func (s *MinIOStore) Put(ctx context.Context, key, path, contentType string) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	info, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Debug("object uploaded", zap.String("key", key), zap.Int64("size", info.Size))
	return ObjectURL(s.publicURL, s.bucket, key), nil
}

// ObjectURL arma la URL path-style de un objeto.
func ObjectURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
