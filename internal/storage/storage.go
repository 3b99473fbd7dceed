// Package storage retrieves uploaded archives from object storage into local
// scratch files, bounded by scratch disk rather than memory.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/vitalsync/healthimport/internal/config"
)

// Client wraps the S3 API for archive retrieval.
type Client struct {
	s3         *s3.Client
	bucket     string
	scratchDir string
}

// New builds a storage client from the standard AWS credential chain. A
// non-empty endpoint overrides the resolver for localstack-style setups.
// scratchDir may be empty, in which case the OS temp dir is used.
func New(ctx context.Context, cfg config.StorageConfig, scratchDir string) (*Client, error) {
	awsConfig, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Client{s3: client, bucket: cfg.Bucket, scratchDir: scratchDir}, nil
}

// Download streams the object at storagePath into a private scratch file and
// returns its path. The transfer is always streamed with io.Copy; the whole
// object is never buffered in memory. Any transfer error is fatal for the
// item. The caller owns removal of the returned file.
func (c *Client) Download(ctx context.Context, logger *slog.Logger, storagePath, importID string) (string, error) {
	logger.Info("Downloading archive from object storage.",
		slog.String("bucket", c.bucket), slog.String("key", storagePath))

	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(storagePath),
	})
	if err != nil {
		return "", fmt.Errorf("get object %s/%s: %w", c.bucket, storagePath, err)
	}
	defer out.Body.Close()

	scratchPath := filepath.Join(c.scratchDir, fmt.Sprintf("healthimport-%s-%s.zip", importID, uuid.NewString()[:8]))
	f, err := os.Create(scratchPath)
	if err != nil {
		return "", fmt.Errorf("create scratch file %s: %w", scratchPath, err)
	}

	written, err := io.Copy(f, out.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(scratchPath)
		return "", fmt.Errorf("stream object %s to %s: %w", storagePath, scratchPath, err)
	}
	if closeErr != nil {
		os.Remove(scratchPath)
		return "", fmt.Errorf("close scratch file %s: %w", scratchPath, closeErr)
	}

	logger.Info("Archive downloaded.", slog.String("path", scratchPath), slog.Int64("bytes", written))
	return scratchPath, nil
}
