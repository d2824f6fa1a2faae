// Package storage uploads product logos and hands back the URL the web app
// serves them from.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ObjectStore interface {
	// Upload stores data under key, replacing any existing object, and
	// returns its public URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PublicURL(key string) string
}

// MinioStore talks to any S3 compatible bucket (Supabase storage, MinIO, S3).
type MinioStore struct {
	client *miniogo.Client
	cfg    *config.StorageConfig
	logger logger.Logger
}

func NewMinioStore(ctx context.Context, cfg *config.StorageConfig, l logger.Logger) (*MinioStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	s := &MinioStore{client: client, cfg: cfg, logger: l}
	if err = s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err = s.client.MakeBucket(ctx, s.cfg.Bucket, miniogo.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.cfg.Bucket, err)
	}
	s.logger.Info("created bucket", logger.String("bucket", s.cfg.Bucket))
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{
			ContentType:  contentType,
			CacheControl: "public, max-age=31536000",
		})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

func (s *MinioStore) PublicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	u := s.client.EndpointURL()
	return u.Scheme + "://" + u.Host + "/" + s.cfg.Bucket + "/" + key
}

// LocalStore writes objects to a directory. Dry runs use it so nothing
// leaves the machine.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

func (s *LocalStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create dir for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

func (s *LocalStore) PublicURL(key string) string {
	if s.baseURL != "" {
		return strings.TrimRight(s.baseURL, "/") + "/" + key
	}
	abs, err := filepath.Abs(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil {
		abs = filepath.Join(s.dir, key)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
