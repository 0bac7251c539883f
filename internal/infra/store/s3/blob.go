// Package s3 adapts aws-sdk-go into the blob half of the Result Store
// Adapter (C5), the alternative backend to minio for report persistence.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Store is an S3-backed blob store for final reports.
type Store struct {
	client *s3.S3
	bucket string
}

// New builds an S3 client from static credentials.
func New(region, bucket, accessKey, secretKey string) (*Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	})
	if err != nil {
		return nil, err
	}
	return &Store{client: s3.New(sess), bucket: bucket}, nil
}

// PutReport uploads payload under reports/{correlationID}/{unix-nano}.json
// (or .pdf) and returns an opaque s3:// locator string.
func (s *Store) PutReport(ctx context.Context, correlationID string, payload []byte, contentType string) (string, error) {
	ext := "json"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	key := fmt.Sprintf("reports/%s/%d.%s", correlationID, time.Now().UnixNano(), ext)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// GetReport retrieves a previously stored report by its s3:// locator.
func (s *Store) GetReport(ctx context.Context, locator string) ([]byte, string, error) {
	key, err := keyFromLocator(s.bucket, locator)
	if err != nil {
		return nil, "", err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	return data, contentType, nil
}

func keyFromLocator(bucket, locator string) (string, error) {
	prefix := fmt.Sprintf("s3://%s/", bucket)
	if len(locator) <= len(prefix) || locator[:len(prefix)] != prefix {
		return "", fmt.Errorf("locator %q does not belong to bucket %q", locator, bucket)
	}
	return locator[len(prefix):], nil
}
