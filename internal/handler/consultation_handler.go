package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/response"
)

type consultationService interface {
	Daily(ctx context.Context, filter models.ConsultationFilter) ([]models.Consultation, error)
	Create(ctx context.Context, req models.CreateConsultationRequest, meta service.AuditMeta) (*models.Consultation, error)
	Attend(ctx context.Context, id string, meta service.AuditMeta) (*models.Consultation, error)
}

// ConsultationHandler serves the daily consultation queue.
type ConsultationHandler struct {
	service consultationService
}

// NewConsultationHandler builds the handler.
func NewConsultationHandler(svc consultationService) *ConsultationHandler {
	return &ConsultationHandler{service: svc}
}

// Daily godoc
// @Summary Today's consultation queue
// @Description Urgent consultations first, then by arrival
// @Tags Consultations
// @Produce json
// @Param filtro query string false "pendientes, atendidas or todas"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /consultas/dia [get]
func (h *ConsultationHandler) Daily(c *gin.Context) {
	filter, ok := models.ParseConsultationFilter(c.Query("filtro"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "filtro must be pendientes, atendidas or todas"))
		return
	}
	consultations, err := h.service.Daily(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, consultations, nil, map[string]interface{}{"total": len(consultations)})
}

// Create godoc
// @Summary Enqueue consultation
// @Tags Consultations
// @Accept json
// @Produce json
// @Param payload body models.CreateConsultationRequest true "Consultation"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /consultas [post]
func (h *ConsultationHandler) Create(c *gin.Context) {
	var req models.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	consultation, err := h.service.Create(c.Request.Context(), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, consultation)
}

// Attend godoc
// @Summary Mark consultation attended
// @Tags Consultations
// @Produce json
// @Param id path string true "Consultation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /consultas/{id}/atender [post]
func (h *ConsultationHandler) Attend(c *gin.Context) {
	consultation, err := h.service.Attend(c.Request.Context(), c.Param("id"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, consultation, nil)
}
