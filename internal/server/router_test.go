package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/handler"
	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
)

type stubTokens map[string]models.UserRole

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	role, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &models.JWTClaims{UserID: "u-" + token, Role: role}, nil
}

type stubStudents struct{}

func (stubStudents) List(ctx context.Context, filter models.StudentFilter) (*dto.StudentPage, error) {
	return &dto.StudentPage{Students: []models.Student{{ID: "s1"}}, TotalPages: 1, Page: 1, PageSize: 10, Total: 1}, nil
}

func (stubStudents) Get(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id}, nil
}

func (stubStudents) Create(ctx context.Context, req models.CreateStudentRequest, meta service.AuditMeta) (*models.Student, error) {
	return &models.Student{ID: "new"}, nil
}

func (stubStudents) UploadPhoto(ctx context.Context, id, filename string, r io.Reader) (*models.Student, error) {
	return &models.Student{ID: id}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := stubTokens{
		"admin":     models.RoleAdmin,
		"nurse":     models.RoleNurse,
		"reception": models.RoleReception,
	}
	return NewRouter(Options{
		APIPrefix: "/api",
		Tokens:    tokens,
		Metrics:   service.NewMetricsService(),
	}, Handlers{
		Auth:            handler.NewAuthHandler(nil),
		Students:        handler.NewStudentHandler(stubStudents{}),
		ClinicalRecords: handler.NewClinicalRecordHandler(nil),
		Consultations:   handler.NewConsultationHandler(nil),
		Inventory:       handler.NewInventoryHandler(nil),
		Reports:         handler.NewReportHandler(nil, nil),
		ReportFunction:  handler.NewReportFunctionHandler(nil),
		Uploads:         handler.NewUploadHandler(nil),
		Users:           handler.NewUserHandler(nil),
		Metrics:         handler.NewMetricsHandler(service.NewMetricsService(), nil),
	})
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthIsPublic(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/api/estudiantes", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(r, http.MethodGet, "/api/estudiantes", "forged")
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestRouterStudentsOpenToAllStaff(t *testing.T) {
	r := newTestRouter(t)

	for _, token := range []string{"admin", "nurse", "reception"} {
		rec := serve(r, http.MethodGet, "/api/estudiantes?pagina=1&filas=10", token)
		require.Equal(t, http.StatusOK, rec.Code, token)

		var body struct {
			Data dto.StudentPage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Data.Students, 1)
	}
}

func TestRouterRoleRestrictions(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/expedientes/ultimos"},
		{http.MethodGet, "/api/reportes/consultas"},
		{http.MethodPost, "/api/consultas/c1/atender"},
		{http.MethodDelete, "/api/inventario/i1"},
		{http.MethodGet, "/api/usuarios"},
		{http.MethodPost, FunctionsPath + "/enviarReporte"},
	}
	for _, tc := range cases {
		rec := serve(r, tc.method, tc.path, "reception")
		assert.Equal(t, http.StatusForbidden, rec.Code, tc.path)
	}

	rec := serve(r, http.MethodGet, "/api/usuarios", "nurse")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterRealtimeDisabledWithoutHandler(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/api/realtime", "nurse")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterDocsOnlyWhenEnabled(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/docs/index.html", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
