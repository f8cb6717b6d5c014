package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type reportServiceMock struct {
	window models.MonthlyWindow
	asOf   *time.Time
	format models.ReportFormat
}

func (m *reportServiceMock) ConsultationsReport(_ context.Context, window models.MonthlyWindow) (*dto.MonthlyConsultationsReport, error) {
	m.window = window
	return &dto.MonthlyConsultationsReport{
		Window: window,
		Consultations: []models.Consultation{
			{ID: "c1", Priority: models.PriorityUrgent},
			{ID: "c2", Priority: models.PriorityNormal},
			{ID: "c3", Priority: models.PriorityNormal},
		},
		Urgent: 1,
		Normal: 2,
	}, nil
}

func (m *reportServiceMock) InventoryReport(_ context.Context, asOf *time.Time) (*dto.InventoryReport, error) {
	m.asOf = asOf
	return &dto.InventoryReport{AsOf: asOf, Items: []models.InventoryItem{{ID: "i1"}, {ID: "i2"}}, LowStock: 1}, nil
}

func (m *reportServiceMock) ExportConsultations(_ context.Context, window models.MonthlyWindow, format models.ReportFormat) (*service.ExportFile, error) {
	m.window, m.format = window, format
	return &service.ExportFile{Filename: "consultas-" + window.Key() + ".csv", ContentType: "text/csv", Data: []byte("id,motivo\n")}, nil
}

func (m *reportServiceMock) ExportInventory(_ context.Context, asOf *time.Time, format models.ReportFormat) (*service.ExportFile, error) {
	m.asOf, m.format = asOf, format
	return &service.ExportFile{Filename: "inventario.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}, nil
}

type monthlyReportServiceMock struct {
	req     models.MonthlyReportRequest
	actorID string
}

func (m *monthlyReportServiceMock) Enqueue(_ context.Context, req models.MonthlyReportRequest, actorID string) (*models.ReportJob, error) {
	m.req, m.actorID = req, actorID
	return &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued}, nil
}

func (m *monthlyReportServiceMock) Get(_ context.Context, id string) (*models.ReportJob, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	return &models.ReportJob{ID: id, Status: models.ReportStatusSent}, nil
}

func (m *monthlyReportServiceMock) List(context.Context) []models.ReportJob {
	return []models.ReportJob{{ID: "job-1"}}
}

func TestReportHandlerConsultationsDecemberWindow(t *testing.T) {
	reports := &reportServiceMock{}
	h := NewReportHandler(reports, &monthlyReportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reportes/consultas?mes=12&anio=2024", nil)
	h.Consultations(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), reports.window.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), reports.window.End)
}

func TestReportHandlerConsultationsSendsArrayWithTotalsInMeta(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{}, &monthlyReportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reportes/consultas?mes=12&anio=2024", nil)
	h.Consultations(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var consultations []models.Consultation
	require.NoError(t, json.Unmarshal(env.Data, &consultations))
	require.Len(t, consultations, 3)
	assert.Equal(t, "c1", consultations[0].ID)
	assert.Equal(t, "2024-12", env.Meta["periodo"])
	assert.EqualValues(t, 1, env.Meta["urgentes"])
	assert.EqualValues(t, 2, env.Meta["normales"])
}

func TestReportHandlerInventorySendsArrayWithLowStockInMeta(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{}, &monthlyReportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reportes/inventario?hasta=2024-03-31", nil)
	h.Inventory(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var items []models.InventoryItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 2)
	assert.EqualValues(t, 1, env.Meta["bajo_stock"])
	assert.Equal(t, "2024-04-01T00:00:00Z", env.Meta["hasta"])

	c, w = newGinContext(http.MethodGet, "/reportes/inventario", nil)
	h.Inventory(c)
	env = decodeEnvelope(t, w)
	_, hasAsOf := env.Meta["hasta"]
	assert.False(t, hasAsOf)
}

func TestReportHandlerConsultationsDefaultsToCurrentMonth(t *testing.T) {
	reports := &reportServiceMock{}
	h := NewReportHandler(reports, &monthlyReportServiceMock{})
	h.now = func() time.Time { return time.Date(2024, 2, 17, 10, 0, 0, 0, time.UTC) }

	c, w := newGinContext(http.MethodGet, "/reportes/consultas", nil)
	h.Consultations(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, reports.window.Month)
	assert.Equal(t, 29, reports.window.Days())
}

func TestReportHandlerConsultationsRejectsInvalidMonth(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{}, &monthlyReportServiceMock{})

	for _, query := range []string{"mes=13&anio=2024", "mes=1&anio=24", "mes=uno&anio=2024", "mes=1&anio=2024&formato=xlsx"} {
		c, w := newGinContext(http.MethodGet, "/reportes/consultas?"+query, nil)
		h.Consultations(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestReportHandlerConsultationsCSVAttachment(t *testing.T) {
	reports := &reportServiceMock{}
	h := NewReportHandler(reports, &monthlyReportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reportes/consultas?mes=3&anio=2024&formato=csv", nil)
	h.Consultations(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReportFormatCSV, reports.format)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "consultas-2024-03.csv")
	assert.Equal(t, "id,motivo\n", w.Body.String())
}

func TestReportHandlerInventoryAsOfDate(t *testing.T) {
	reports := &reportServiceMock{}
	h := NewReportHandler(reports, &monthlyReportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reportes/inventario?hasta=2024-03-31&formato=pdf", nil)
	h.Inventory(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, reports.asOf)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *reports.asOf)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestReportHandlerInventoryCurrent(t *testing.T) {
	reports := &reportServiceMock{}
	h := NewReportHandler(reports, &monthlyReportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reportes/inventario", nil)
	h.Inventory(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, reports.asOf)

	c, w = newGinContext(http.MethodGet, "/reportes/inventario?hasta=marzo", nil)
	h.Inventory(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseAsOfRFC3339(t *testing.T) {
	asOf, err := parseAsOf("2024-03-15T12:00:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC), *asOf)
}

func TestReportHandlerEnqueueMonthly(t *testing.T) {
	monthly := &monthlyReportServiceMock{}
	h := NewReportHandler(&reportServiceMock{}, monthly)

	body, _ := json.Marshal(models.MonthlyReportRequest{Month: 5, Year: 2024})
	c, w := newGinContext(http.MethodPost, "/reportes/mensual", body)
	withUser(c, "admin-1", models.RoleAdmin)
	h.EnqueueMonthly(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 5, monthly.req.Month)
	assert.Equal(t, "admin-1", monthly.actorID)
}

func TestReportHandlerMonthlyStatus(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{}, &monthlyReportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reportes/mensual/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	h.MonthlyStatus(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/reportes/mensual/other", nil)
	c.Params = gin.Params{{Key: "id", Value: "other"}}
	h.MonthlyStatus(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
