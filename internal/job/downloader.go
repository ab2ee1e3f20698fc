package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Downloader materializes one object at localPath.
type Downloader interface {
	Download(ctx context.Context, bucket, key, localPath string) error
}

// S3Downloader downloads with the S3 transfer manager.
type S3Downloader struct {
	downloader *manager.Downloader
	timeout    time.Duration
}

// NewS3Downloader wraps client. timeout bounds a single download; zero means 5 minutes.
func NewS3Downloader(client manager.DownloadAPIClient, timeout time.Duration) *S3Downloader {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &S3Downloader{
		downloader: manager.NewDownloader(client),
		timeout:    timeout,
	}
}

// Download writes s3://bucket/key to localPath, creating parent directories.
func (d *S3Downloader) Download(ctx context.Context, bucket, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(localPath), err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	_, err = d.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("s3 download s3://%s/%s failed: %w", bucket, key, err)
	}
	return nil
}
