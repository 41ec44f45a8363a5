// Package s3fetch downloads xlog files and archives named by s3:// URIs so the
// batch runner can treat them like local inputs.
package s3fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client fetches objects from S3 using the default credential chain.
type Client struct {
	s3Client   *s3.Client
	downloader *Downloader
}

// NewClient creates a new S3 client using default AWS configuration.
func NewClient(ctx context.Context, cfg DownloaderConfig) (*Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(awsCfg, cfg), nil
}

// NewClientWithConfig creates a new S3 client with a custom AWS config.
func NewClientWithConfig(awsCfg aws.Config, cfg DownloaderConfig) *Client {
	s3Client := s3.NewFromConfig(awsCfg)
	return &Client{
		s3Client:   s3Client,
		downloader: NewDownloader(s3Client, cfg),
	}
}

// Fetch downloads the object named by uri into destDir and returns the local
// path. The local name is the last key component, so a fetched "logs/a.xlog"
// decodes to the same output name as a local "a.xlog".
func (c *Client) Fetch(ctx context.Context, uri, destDir string) (string, *DownloadResult, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return "", nil, err
	}
	if key == "" {
		return "", nil, fmt.Errorf("s3 URI %q names a bucket, not an object", uri)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create download dir: %w", err)
	}

	localPath := filepath.Join(destDir, LocalName(key))
	res, err := c.downloader.DownloadToFile(ctx, bucket, key, localPath)
	if err != nil {
		return "", nil, err
	}
	return localPath, res, nil
}
