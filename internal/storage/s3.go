// Package storage fetches source documents kept in S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const scheme = "s3://"

// S3ClientConfig holds configuration for S3Client
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Client downloads s3://bucket/key documents so they can be parsed locally
type S3Client struct {
	client *s3.Client
}

func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*S3Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Client{client: client}, nil
}

// IsS3Path reports whether p uses the s3:// scheme
func IsS3Path(p string) bool {
	return strings.HasPrefix(p, scheme)
}

// ParseS3Path splits s3://bucket/key
func ParseS3Path(p string) (bucket, key string, err error) {
	if !IsS3Path(p) {
		return "", "", fmt.Errorf("not an s3 path: %s", p)
	}
	bucket, key, _ = strings.Cut(strings.TrimPrefix(p, scheme), "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 path needs a bucket and a key: %s", p)
	}
	return bucket, key, nil
}

// Resolve returns a local path for p. Local paths are returned unchanged.
// s3:// objects are downloaded to a temporary file keeping the key's
// extension; cleanup removes it.
func (c *S3Client) Resolve(ctx context.Context, p string) (string, func(), error) {
	if !IsS3Path(p) {
		return p, func() {}, nil
	}

	bucket, key, err := ParseS3Path(p)
	if err != nil {
		return "", nil, err
	}

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to get object %s: %w", p, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "taxrag-*"+path.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	n, err := io.Copy(tmp, out.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to download %s: %w", p, err)
	}

	log.Info().Str("source", p).Int64("bytes", n).Msg("Downloaded document")
	return tmp.Name(), cleanup, nil
}
