package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/middleware"
	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/response"
)

type reportService interface {
	ConsultationsReport(ctx context.Context, window models.MonthlyWindow) (*dto.MonthlyConsultationsReport, error)
	InventoryReport(ctx context.Context, asOf *time.Time) (*dto.InventoryReport, error)
	ExportConsultations(ctx context.Context, window models.MonthlyWindow, format models.ReportFormat) (*service.ExportFile, error)
	ExportInventory(ctx context.Context, asOf *time.Time, format models.ReportFormat) (*service.ExportFile, error)
}

type monthlyReportService interface {
	Enqueue(ctx context.Context, req models.MonthlyReportRequest, actorID string) (*models.ReportJob, error)
	Get(ctx context.Context, id string) (*models.ReportJob, error)
	List(ctx context.Context) []models.ReportJob
}

// ReportHandler serves the monthly report endpoints.
type ReportHandler struct {
	reports reportService
	monthly monthlyReportService
	now     func() time.Time
}

// NewReportHandler builds the handler.
func NewReportHandler(reports reportService, monthly monthlyReportService) *ReportHandler {
	return &ReportHandler{reports: reports, monthly: monthly, now: time.Now}
}

// Consultations godoc
// @Summary Consultations of a month
// @Description Returns consultations in [first of month, first of next month). Defaults to the current month.
// @Description data is the consultation array; meta carries periodo, urgentes and normales.
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param mes query int false "Month 1-12"
// @Param anio query int false "Four digit year"
// @Param formato query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reportes/consultas [get]
func (h *ReportHandler) Consultations(c *gin.Context) {
	window, err := h.windowFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, ok := models.ParseReportFormat(c.Query("formato"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "formato must be json, csv or pdf"))
		return
	}

	if format == models.ReportFormatJSON {
		report, err := h.reports.ConsultationsReport(c.Request.Context(), window)
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetMeta(c, "periodo", window.Key())
		middleware.SetMeta(c, "urgentes", report.Urgent)
		middleware.SetMeta(c, "normales", report.Normal)
		response.JSON(c, http.StatusOK, report.Consultations, nil, middleware.ResponseMeta(c))
		return
	}

	file, err := h.reports.ExportConsultations(c.Request.Context(), window, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Inventory godoc
// @Summary Inventory snapshot
// @Description Current stock, or stock as of hasta when given (RFC3339 or YYYY-MM-DD, inclusive).
// @Description data is the item array; meta carries bajo_stock and hasta when set.
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param hasta query string false "Snapshot instant"
// @Param formato query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reportes/inventario [get]
func (h *ReportHandler) Inventory(c *gin.Context) {
	asOf, err := parseAsOf(c.Query("hasta"))
	if err != nil {
		response.Error(c, err)
		return
	}
	format, ok := models.ParseReportFormat(c.Query("formato"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "formato must be json, csv or pdf"))
		return
	}

	if format == models.ReportFormatJSON {
		report, err := h.reports.InventoryReport(c.Request.Context(), asOf)
		if err != nil {
			response.Error(c, err)
			return
		}
		if report.AsOf != nil {
			middleware.SetMeta(c, "hasta", report.AsOf.UTC().Format(time.RFC3339))
		}
		middleware.SetMeta(c, "bajo_stock", report.LowStock)
		response.JSON(c, http.StatusOK, report.Items, nil, middleware.ResponseMeta(c))
		return
	}

	file, err := h.reports.ExportInventory(c.Request.Context(), asOf, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// EnqueueMonthly godoc
// @Summary Generate and mail a monthly report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body models.MonthlyReportRequest true "Month"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /reportes/mensual [post]
func (h *ReportHandler) EnqueueMonthly(c *gin.Context) {
	var req models.MonthlyReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	actor := ""
	if claims := claimsFromContext(c); claims != nil {
		actor = claims.UserID
	}
	job, err := h.monthly.Enqueue(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// MonthlyStatus godoc
// @Summary Monthly report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reportes/mensual/{id} [get]
func (h *ReportHandler) MonthlyStatus(c *gin.Context) {
	job, err := h.monthly.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// MonthlyJobs godoc
// @Summary Recent monthly report jobs
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reportes/mensual [get]
func (h *ReportHandler) MonthlyJobs(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.monthly.List(c.Request.Context()), nil)
}

func (h *ReportHandler) windowFromQuery(c *gin.Context) (models.MonthlyWindow, error) {
	now := h.now().UTC()
	month, err := queryInt(c, "mes", int(now.Month()))
	if err != nil {
		return models.MonthlyWindow{}, err
	}
	year, err := queryInt(c, "anio", now.Year())
	if err != nil {
		return models.MonthlyWindow{}, err
	}
	window, err := models.NewMonthlyWindow(month, year)
	if err != nil {
		return models.MonthlyWindow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return window, nil
}

// parseAsOf accepts RFC3339 or a calendar date. A date covers the whole day.
func parseAsOf(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hasta must be RFC3339 or YYYY-MM-DD")
	}
	end := day.AddDate(0, 0, 1)
	return &end, nil
}
