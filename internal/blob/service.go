// Package blob stores step attachments in S3-compatible object storage.
// Objects are keyed <projectID>/step-<NN>/<attachmentID>-<filename> so a
// step's attachments can be listed with one prefix scan.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"waypoint/api/internal/util"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Attachment struct {
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &Service{client: client, bucket: cfg.Bucket}, nil
}

func stepPrefix(projectID string, stepNumber int) string {
	return fmt.Sprintf("%s/step-%02d/", projectID, stepNumber)
}

// Upload stores an attachment and returns its object key.
func (s *Service) Upload(ctx context.Context, projectID string, stepNumber int, filename, contentType string, size int64, body io.Reader) (string, error) {
	safe := strings.ReplaceAll(filename, "/", "_")
	key := stepPrefix(projectID, stepNumber) + util.NewID("att") + "-" + safe
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload attachment: %w", err)
	}
	return key, nil
}

// List returns the attachments stored for one step.
func (s *Service) List(ctx context.Context, projectID string, stepNumber int) ([]Attachment, error) {
	prefix := stepPrefix(projectID, stepNumber)
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix})

	var out []Attachment
	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("list attachments: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if i := strings.IndexByte(name, '-'); i >= 0 {
			name = name[i+1:]
		}
		out = append(out, Attachment{
			Key:        obj.Key,
			Filename:   name,
			Size:       obj.Size,
			UploadedAt: obj.LastModified,
		})
	}
	return out, nil
}

// PresignedURL returns a time-limited download link for an attachment.
func (s *Service) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign attachment: %w", err)
	}
	return u.String(), nil
}

// Remove deletes an attachment.
func (s *Service) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}
