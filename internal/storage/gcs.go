package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrMissingBucket = errors.New("gcs storage requires a bucket")

// GCSStorage uploads outputs to a Google Cloud Storage bucket.
type GCSStorage struct {
	client       *storage.Client
	bucket       string
	objectPrefix string
	baseDir      string
}

// NewGCSStorage creates a new GCSStorage instance
func NewGCSStorage(ctx context.Context, bucketName, objectPrefix, baseDir, credentialsFile string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucketName == "" {
		return nil, ErrMissingBucket
	}

	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	// Without options the client uses application default credentials.
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client:       client,
		bucket:       bucketName,
		objectPrefix: objectPrefix,
		baseDir:      baseDir,
	}, nil
}

// Publish uploads localPath and returns the object name.
func (s *GCSStorage) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer f.Close()

	objectName := s.ObjectName(localPath)

	ctx, cancel := context.WithTimeout(ctx, time.Minute*5)
	defer cancel()

	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to copy file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	slog.Debug("Uploaded output", "bucket", s.bucket, "object", objectName)
	return objectName, nil
}

// ObjectName returns the object a local file is uploaded to.
func (s *GCSStorage) ObjectName(localPath string) string {
	name := relativeName(s.baseDir, localPath)
	if s.objectPrefix != "" {
		name = s.objectPrefix + "/" + name
	}
	return name
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
