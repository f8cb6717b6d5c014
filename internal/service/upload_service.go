package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/storage"
)

// sniffLen is how much of an upload http.DetectContentType looks at.
const sniffLen = 512

var allowedBuckets = map[string]struct{}{
	PhotoBucket:  {},
	"documentos": {},
}

type urlSigner interface {
	Generate(objectPath string) (string, time.Time, error)
	Parse(token string) (string, error)
}

// UploadConfig tunes upload handling.
type UploadConfig struct {
	APIPrefix string
	MaxBytes  int64
	// AllowedTypes restricts uploads by MIME type. Both the extension and the
	// sniffed content must match an entry. Empty allows all.
	AllowedTypes []string
}

// Download is an opened stored object.
type Download struct {
	Body     io.ReadCloser
	Filename string
}

// UploadService stores blobs and issues signed download links.
type UploadService struct {
	store   storage.Store
	signer  urlSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     UploadConfig
}

// NewUploadService constructs the upload service.
func NewUploadService(store storage.Store, signer urlSigner, metrics *MetricsService, logger *zap.Logger, cfg UploadConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	cfg.APIPrefix = strings.TrimSuffix(cfg.APIPrefix, "/")
	return &UploadService{store: store, signer: signer, metrics: metrics, logger: logger, cfg: cfg}
}

// Upload streams r into bucket and returns its path, ETag and a signed URL.
func (s *UploadService) Upload(ctx context.Context, bucket, filename string, r io.Reader) (*models.UploadResult, error) {
	if _, ok := allowedBuckets[bucket]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown bucket %q", bucket))
	}
	if !s.typeAllowed(mime.TypeByExtension(strings.ToLower(path.Ext(filename)))) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type of %q is not allowed", filename))
	}
	head := bufio.NewReaderSize(r, sniffLen)
	if len(s.cfg.AllowedTypes) > 0 {
		sniffed, err := head.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect upload")
		}
		if len(sniffed) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
		}
		if detected := http.DetectContentType(sniffed); !s.typeAllowed(detected) {
			s.logger.Info("upload content does not match allowed types", zap.String("filename", filename), zap.String("detected", detected))
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content of %q is not an allowed file type", filename))
		}
	}
	digest := xxhash.New()
	counter := &countingReader{r: io.LimitReader(head, s.cfg.MaxBytes+1)}
	objectPath, err := s.store.Put(ctx, bucket, filename, io.TeeReader(counter, digest))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	if counter.n > s.cfg.MaxBytes {
		if delErr := s.store.Delete(ctx, objectPath); delErr != nil {
			s.logger.Warn("failed to remove oversized upload", zap.String("path", objectPath), zap.Error(delErr))
		}
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxBytes))
	}
	if counter.n == 0 {
		_ = s.store.Delete(ctx, objectPath)
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	s.metrics.RecordUpload(bucket, counter.n)

	result := &models.UploadResult{
		Path: objectPath,
		Size: counter.n,
		ETag: fmt.Sprintf("%016x", digest.Sum64()),
	}
	if s.signer != nil {
		token, expiresAt, err := s.signer.Generate(objectPath)
		if err != nil {
			s.logger.Warn("failed to sign upload url", zap.String("path", objectPath), zap.Error(err))
		} else {
			result.URL = s.cfg.APIPrefix + "/archivos/" + token
			result.ExpiresAt = expiresAt
		}
	}
	return result, nil
}

// Open resolves a signed token into a readable object.
func (s *UploadService) Open(ctx context.Context, token string) (*Download, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "signed downloads are not configured")
	}
	objectPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	body, err := s.store.Open(ctx, objectPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &Download{Body: body, Filename: path.Base(objectPath)}, nil
}

// typeAllowed reports whether contentType, parameters ignored, is on the allow-list.
func (s *UploadService) typeAllowed(contentType string) bool {
	if len(s.cfg.AllowedTypes) == 0 {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, allowed := range s.cfg.AllowedTypes {
		if strings.EqualFold(allowed, mediaType) {
			return true
		}
	}
	return false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
