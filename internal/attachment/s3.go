package attachment

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible attachment bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	BaseURL   string
}

// S3Sink stores attachments as objects in an S3-compatible bucket.
type S3Sink struct {
	client  *minio.Client
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewS3Sink connects to the bucket, creating it when it does not exist.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &S3Sink{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		now:     time.Now,
	}, nil
}

// Store uploads data under a fresh key.
func (s *S3Sink) Store(ctx context.Context, data []byte, suggestedFilename string, hint Hint) (models.Attachment, error) {
	if len(data) == 0 {
		return models.Attachment{}, ErrEmptyAttachment
	}

	key := StoredName(s.now(), suggestedFilename)
	mimeType := ResolveMIMEType(data, hint)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return models.Attachment{}, &WriteError{Filename: suggestedFilename, Err: err}
	}
	if info.Size == 0 {
		return models.Attachment{}, &WriteError{Filename: suggestedFilename, Err: ErrEmptyAttachment}
	}

	return models.Attachment{
		URL:       s.baseURL + "/" + key,
		Filename:  SanitizeFilename(suggestedFilename),
		SizeBytes: info.Size,
		MimeType:  mimeType,
		IsImage:   hint.IsImage,
	}, nil
}
