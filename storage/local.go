package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage writes objects below a directory that the router serves
// under urlPrefix.
type LocalStorage struct {
	dir       string
	urlPrefix string
}

func NewLocalStorage(dir, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

func (l *LocalStorage) Name() string { return "local" }

// Dir is the directory to serve statically.
func (l *LocalStorage) Dir() string { return l.dir }

// URLPrefix is the route the directory is served under.
func (l *LocalStorage) URLPrefix() string { return l.urlPrefix }

func (l *LocalStorage) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	target, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path.Join(l.urlPrefix, key), nil
}

func (l *LocalStorage) Delete(_ context.Context, key string) error {
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.dir, clean), nil
}
