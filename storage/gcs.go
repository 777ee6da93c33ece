package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/princinho/eventhub/config"
	"google.golang.org/api/option"
)

type GCSStorage struct {
	client *gcs.Client
	bucket string
}

func NewGCSStorage(ctx context.Context, cfg config.StorageConfig) (*GCSStorage, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("missing GCS_BUCKET")
	}

	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSCredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStorage{client: client, bucket: cfg.GCSBucket}, nil
}

func (g *GCSStorage) Name() string { return "gcs" }

func (g *GCSStorage) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	// refuse to overwrite, keys are unique
	obj := g.client.Bucket(g.bucket).Object(key).If(gcs.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("io.Copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key), nil
}

func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	return g.client.Bucket(g.bucket).Object(key).Delete(ctx)
}

func (g *GCSStorage) Close() error {
	return g.client.Close()
}
