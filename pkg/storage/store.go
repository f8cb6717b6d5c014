package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists uploaded blobs grouped by bucket.
type Store interface {
	Put(ctx context.Context, bucket, name string, r io.Reader) (string, error)
	Open(ctx context.Context, objectPath string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectPath string) error
}

// ObjectPath builds a collision-free "<bucket>/<yyyy>/<mm>/<uuid>-<name>" key.
func ObjectPath(bucket, filename string, now time.Time) (string, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" || strings.ContainsAny(bucket, `/\.`) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	name := sanitizeName(filename)
	if name == "" {
		return "", fmt.Errorf("filename required")
	}
	return path.Join(bucket, now.UTC().Format("2006/01"), uuid.NewString()+"-"+name), nil
}

// CleanPath rejects keys that would escape the storage root.
func CleanPath(objectPath string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(objectPath, `\`, "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return cleaned, nil
}

func sanitizeName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
