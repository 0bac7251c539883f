// Package minio adapts minio-go into the blob half of the Result Store
// Adapter (C5): report persistence keyed by correlation id.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is a MinIO-backed blob store for final reports.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New connects to a MinIO endpoint and ensures the target bucket exists.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// PutReport uploads payload under reports/{correlationID}/{unix-nano}.json
// (or .pdf for application/pdf) and returns an opaque locator string.
func (s *Store) PutReport(ctx context.Context, correlationID string, payload []byte, contentType string) (string, error) {
	ext := "json"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	key := fmt.Sprintf("reports/%s/%d.%s", correlationID, time.Now().UnixNano(), ext)

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("minio://%s/%s", s.bucketName, key), nil
}

// GetReport retrieves a previously stored report by its minio:// locator.
func (s *Store) GetReport(ctx context.Context, locator string) ([]byte, string, error) {
	key, err := keyFromLocator(s.bucketName, locator)
	if err != nil {
		return nil, "", err
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", err
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", err
	}
	return data, info.ContentType, nil
}

func keyFromLocator(bucket, locator string) (string, error) {
	prefix := fmt.Sprintf("minio://%s/", bucket)
	if len(locator) <= len(prefix) || locator[:len(prefix)] != prefix {
		return "", fmt.Errorf("locator %q does not belong to bucket %q", locator, bucket)
	}
	return locator[len(prefix):], nil
}
