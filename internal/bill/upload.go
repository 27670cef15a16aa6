package bill

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/loqalabs/loqa-till/internal/config"
)

// Uploader copies a rendered bill to remote storage and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) (string, error)
}

// S3Uploader targets any S3-compatible store (R2, MinIO, AWS).
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	baseURL string
	prefix  string
}

func NewS3Uploader(ctx context.Context, cfg config.UploadConfig) (*S3Uploader, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		prefix:  strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if u.prefix != "" {
		key = path.Join(u.prefix, key)
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	if u.baseURL == "" {
		return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
	}
	return fmt.Sprintf("%s/%s", u.baseURL, key), nil
}
