package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/response"
)

// reportField is the multipart field the dashboard posts the PDF in.
const reportField = "pdf"

type reportDispatcher interface {
	MaxBytes() int64
	Dispatch(ctx context.Context, filename string, pdf []byte, meta service.AuditMeta) (*models.ReportDispatchResult, error)
}

// ReportFunctionHandler receives a generated PDF and mails it.
type ReportFunctionHandler struct {
	dispatcher reportDispatcher
}

// NewReportFunctionHandler builds the handler.
func NewReportFunctionHandler(dispatcher reportDispatcher) *ReportFunctionHandler {
	return &ReportFunctionHandler{dispatcher: dispatcher}
}

// Send godoc
// @Summary Mail a monthly report PDF
// @Tags Reports
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "Report PDF"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /.netlify/functions/enviarReporte [post]
func (h *ReportFunctionHandler) Send(c *gin.Context) {
	limit := h.dispatcher.MaxBytes()
	// Leave headroom for the multipart envelope around the file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+(1<<20))

	header, err := c.FormFile(reportField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("pdf exceeds %d bytes", limit)))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "pdf field is required"))
		return
	}
	if header.Size > limit {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("pdf exceeds %d bytes", limit)))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable pdf"))
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable pdf"))
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), header.Filename, payload, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Report-Checksum", result.Checksum)
	response.JSON(c, http.StatusOK, result, nil)
}
