// Package storage uploads event banners to object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/princinho/eventhub/config"
)

// Uploader puts and deletes objects and knows the public URL of what it stores.
type Uploader interface {
	Name() string
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Object struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// New builds the uploader selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Driver {
	case config.StorageDriverR2:
		return NewR2Storage(ctx, cfg)
	case config.StorageDriverGCS:
		return NewGCSStorage(ctx, cfg)
	case config.StorageDriverLocal:
		return NewLocalStorage(cfg.LocalDir, "/uploads")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// UploadBanner validates the file and stores it under banners/<owner>/.
func UploadBanner(ctx context.Context, u Uploader, v *FileValidator, ownerID string, fh *multipart.FileHeader) (*Object, error) {
	contentType, err := v.ValidateFile(fh)
	if err != nil {
		return nil, err
	}

	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	key := ObjectKey("banners/"+ownerID, fh.Filename)
	url, err := u.Put(ctx, key, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", fh.Filename, err)
	}

	return &Object{Key: key, URL: url, ContentType: contentType, Size: fh.Size}, nil
}

// ObjectKey returns a collision free key under prefix keeping the file extension.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%d-%s%s", strings.Trim(prefix, "/"), time.Now().UTC().Unix(), uuid.NewString(), ext)
}
