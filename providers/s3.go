package providers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source liest den Dump aus einem S3-Bucket.
type S3Source struct {
	Client *s3.Client
	Bucket string
	Key    string
}

// NewS3Source erstellt eine Quelle für eine s3://bucket/key URL.
func NewS3Source(client *s3.Client, url string) (*S3Source, error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return nil, fmt.Errorf("not an s3 url: %s", url)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 url: %s", url)
	}
	return &S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    &s.Key,
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (s *S3Source) Name() string {
	return "s3"
}
