// Package storage is the S3-backed blob store for intake photos and
// annotated detection output.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// API is the S3 surface the client needs.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Object identifies an uploaded blob.
type Object struct {
	Key string
	URL string
}

// Client uploads and downloads objects in a single bucket.
type Client struct {
	api     API
	bucket  string
	host    string
	timeout time.Duration
	logger  *slog.Logger
}

func NewClient(log *slog.Logger, api API, bucket, host string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api:     api,
		bucket:  bucket,
		host:    host,
		timeout: timeout,
		logger:  log.With(slog.String("component", "storage")),
	}
}

// Upload stores the local file under a key derived from its base name and
// returns the object's key and public URL.
func (c *Client) Upload(ctx context.Context, localPath string) (Object, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return Object{}, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	key := filepath.Base(localPath)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}

	obj := Object{Key: key, URL: c.ObjectURL(key)}
	c.logger.Info("uploaded", slog.String("key", key), slog.String("url", obj.URL))
	return obj, nil
}

// Download streams the object at key into destPath.
func (c *Client) Download(ctx context.Context, key, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object %s: %w", key, err)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(file, out.Body); err != nil {
		_ = file.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return file.Close()
}

// ObjectURL derives the public address of an object,
// https://<bucket>.<host>/<key>.
func (c *Client) ObjectURL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", c.bucket, c.host, key)
}
