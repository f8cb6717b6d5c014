package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrObjectNotFound is returned when an object path does not exist.
var ErrObjectNotFound = errors.New("object not found")

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir string
	now     func() time.Time
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, now: time.Now}, nil
}

// Put copies r into a new object under bucket and returns its path.
func (s *LocalStorage) Put(ctx context.Context, bucket, name string, r io.Reader) (string, error) {
	objectPath, err := ObjectPath(bucket, name, s.now())
	if err != nil {
		return "", err
	}
	target := s.resolve(objectPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, contextReader{ctx: ctx, r: r}); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("write upload stream: %w", err)
	}
	return objectPath, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(_ context.Context, objectPath string) (io.ReadCloser, error) {
	cleaned, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(s.resolve(cleaned))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(_ context.Context, objectPath string) error {
	cleaned, err := CleanPath(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(s.resolve(cleaned)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(objectPath string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(objectPath))
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
