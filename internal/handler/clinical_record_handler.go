package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	"github.com/noah-isme/enfermeria-api/pkg/response"
)

type clinicalRecordService interface {
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.ClinicalRecord, error)
	LatestFor(ctx context.Context, studentIDs []string) ([]models.ClinicalRecord, error)
	Get(ctx context.Context, id string) (*models.ClinicalRecord, error)
	Create(ctx context.Context, req models.CreateClinicalRecordRequest, meta service.AuditMeta) (*models.ClinicalRecord, error)
}

// ClinicalRecordHandler serves clinical files.
type ClinicalRecordHandler struct {
	service clinicalRecordService
}

// NewClinicalRecordHandler builds the handler.
func NewClinicalRecordHandler(svc clinicalRecordService) *ClinicalRecordHandler {
	return &ClinicalRecordHandler{service: svc}
}

// List godoc
// @Summary Latest clinical records of a student
// @Tags ClinicalRecords
// @Produce json
// @Param estudiante_id query string true "Student ID"
// @Param limit query int false "Maximum records (default 1)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /expedientes [get]
func (h *ClinicalRecordHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.service.ListByStudent(c.Request.Context(), c.Query("estudiante_id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Latest godoc
// @Summary Latest clinical record per student
// @Tags ClinicalRecords
// @Produce json
// @Param estudiante_ids query string true "Comma separated student IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /expedientes/ultimos [get]
func (h *ClinicalRecordHandler) Latest(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("estudiante_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	records, err := h.service.LatestFor(c.Request.Context(), ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Get godoc
// @Summary Clinical record detail
// @Tags ClinicalRecords
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /expedientes/{id} [get]
func (h *ClinicalRecordHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Create godoc
// @Summary Add clinical record
// @Tags ClinicalRecords
// @Accept json
// @Produce json
// @Param payload body models.CreateClinicalRecordRequest true "Clinical record"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /expedientes [post]
func (h *ClinicalRecordHandler) Create(c *gin.Context) {
	var req models.CreateClinicalRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	record, err := h.service.Create(c.Request.Context(), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}
