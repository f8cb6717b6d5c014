package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kurin/blazer/b2"
)

// B2Storage stores objects in a Backblaze B2 bucket.
type B2Storage struct {
	client *b2.Client
	bucket *b2.Bucket
	now    func() time.Time
}

// NewB2Storage authorizes against B2 and resolves the target bucket.
func NewB2Storage(ctx context.Context, accountID, appKey, bucketName string) (*B2Storage, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("get b2 bucket %s: %w", bucketName, err)
	}
	return &B2Storage{client: client, bucket: bucket, now: time.Now}, nil
}

// Put uploads r as a new object and returns its key.
func (s *B2Storage) Put(ctx context.Context, bucket, name string, r io.Reader) (string, error) {
	key, err := ObjectPath(bucket, name, s.now())
	if err != nil {
		return "", err
	}
	w := s.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write b2 object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close b2 writer: %w", err)
	}
	return key, nil
}

// Open streams an object back from the bucket.
func (s *B2Storage) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	key, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	obj := s.bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat b2 object: %w", err)
	}
	return obj.NewReader(ctx), nil
}

// Delete removes an object from the bucket.
func (s *B2Storage) Delete(ctx context.Context, objectPath string) error {
	key, err := CleanPath(objectPath)
	if err != nil {
		return err
	}
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return fmt.Errorf("delete b2 object: %w", err)
	}
	return nil
}
