package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type clinicalRecordServiceMock struct {
	studentID string
	limit     int
	ids       []string
}

func (m *clinicalRecordServiceMock) ListByStudent(_ context.Context, studentID string, limit int) ([]models.ClinicalRecord, error) {
	m.studentID, m.limit = studentID, limit
	return []models.ClinicalRecord{{ID: "r1", StudentID: studentID}}, nil
}

func (m *clinicalRecordServiceMock) LatestFor(_ context.Context, ids []string) ([]models.ClinicalRecord, error) {
	m.ids = ids
	return []models.ClinicalRecord{}, nil
}

func (m *clinicalRecordServiceMock) Get(_ context.Context, id string) (*models.ClinicalRecord, error) {
	if id == "r1" {
		return &models.ClinicalRecord{ID: id}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "clinical record not found")
}

func (m *clinicalRecordServiceMock) Create(_ context.Context, req models.CreateClinicalRecordRequest, _ service.AuditMeta) (*models.ClinicalRecord, error) {
	return &models.ClinicalRecord{ID: "r2", StudentID: req.StudentID, Reason: req.Reason}, nil
}

func TestClinicalRecordHandlerListDefaultsLimit(t *testing.T) {
	mock := &clinicalRecordServiceMock{}
	h := NewClinicalRecordHandler(mock)

	c, w := newGinContext(http.MethodGet, "/expedientes?estudiante_id=s1", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mock.studentID)
	assert.Equal(t, 1, mock.limit)
}

func TestClinicalRecordHandlerLatestSplitsIDs(t *testing.T) {
	mock := &clinicalRecordServiceMock{}
	h := NewClinicalRecordHandler(mock)

	c, w := newGinContext(http.MethodGet, "/expedientes/ultimos?estudiante_ids=a,%20b,,c", nil)
	h.Latest(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b", "c"}, mock.ids)
}

func TestClinicalRecordHandlerGet(t *testing.T) {
	h := NewClinicalRecordHandler(&clinicalRecordServiceMock{})

	c, w := newGinContext(http.MethodGet, "/expedientes/r1", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	h.Get(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/expedientes/zz", nil)
	c.Params = gin.Params{{Key: "id", Value: "zz"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
