package handler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/response"
)

// uploadField is the multipart field for generic uploads.
const uploadField = "file"

type uploadService interface {
	Upload(ctx context.Context, bucket, filename string, r io.Reader) (*models.UploadResult, error)
	Open(ctx context.Context, token string) (*service.Download, error)
}

// UploadHandler stores blobs and serves signed downloads.
type UploadHandler struct {
	service uploadService
}

// NewUploadHandler builds the handler.
func NewUploadHandler(svc uploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Upload godoc
// @Summary Upload a file
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param bucket path string true "fotos or documentos"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /uploads/{bucket} [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()

	result, err := h.service.Upload(c.Request.Context(), c.Param("bucket"), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("ETag", fmt.Sprintf("%q", result.ETag))
	response.Created(c, result)
}

// Download godoc
// @Summary Download a file through a signed token
// @Tags Uploads
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archivos/{token} [get]
func (h *UploadHandler) Download(c *gin.Context) {
	download, err := h.service.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(download.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, download.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", download.Filename),
		"Cache-Control":       "private, max-age=300",
	})
}
