package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/princinho/eventhub/config"
)

// R2Storage talks to Cloudflare R2 through the S3 API.
type R2Storage struct {
	client       *s3.Client
	bucket       string
	publicDomain string
}

func NewR2Storage(ctx context.Context, cfg config.StorageConfig) (*R2Storage, error) {
	if cfg.R2Bucket == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2Endpoint == "" {
		return nil, fmt.Errorf("missing R2 env vars (R2_BUCKET, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_ENDPOINT)")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, ""),
		),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2Endpoint)
		o.UsePathStyle = true // required for R2
	})

	return &R2Storage{client: client, bucket: cfg.R2Bucket, publicDomain: cfg.R2PublicDomain}, nil
}

func (r *R2Storage) Name() string { return "r2" }

func (r *R2Storage) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return "", err
	}
	return r.publicURL(key), nil
}

func (r *R2Storage) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	return err
}

// publicURL uses R2_PUBLIC_DOMAIN, a custom domain or the r2.dev URL.
func (r *R2Storage) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(r.publicDomain, "/"), r.bucket, key)
}
