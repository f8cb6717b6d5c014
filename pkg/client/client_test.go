package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/realtime"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/response"
)

type fakeAPI struct {
	mu          sync.Mutex
	authHeaders []string
	queries     []string
	reportName  string
	reportBody  []byte
	hub         *realtime.Hub
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	api := &fakeAPI{hub: realtime.NewHub(realtime.Options{})}
	r := gin.New()

	record := func(c *gin.Context) {
		api.mu.Lock()
		api.authHeaders = append(api.authHeaders, c.GetHeader("Authorization"))
		api.queries = append(api.queries, c.Request.URL.RawQuery)
		api.mu.Unlock()
	}

	r.POST("/api/auth/login", func(c *gin.Context) {
		var req map[string]string
		_ = c.ShouldBindJSON(&req)
		if req["password"] != "secreto123" {
			response.Error(c, appErrors.ErrInvalidCredentials)
			return
		}
		response.JSON(c, http.StatusOK, models.LoginResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
			User:         models.UserInfo{ID: "u1", Email: req["email"], Role: models.RoleNurse},
			IssuedAt:     time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		}, nil)
	})
	r.POST("/api/auth/logout", func(c *gin.Context) {
		record(c)
		response.NoContent(c)
	})
	r.GET("/api/estudiantes", func(c *gin.Context) {
		record(c)
		page := dto.NewStudentPage([]models.Student{{ID: "s1", FullName: "Ana Ruiz"}}, 2, 5, 11)
		response.JSON(c, http.StatusOK, page, models.NewPagination(2, 5, 11))
	})
	r.GET("/api/expedientes/ultimos", func(c *gin.Context) {
		record(c)
		response.JSON(c, http.StatusOK, []models.ClinicalRecord{{ID: "r1", StudentID: "s1"}}, nil)
	})
	r.POST("/api/consultas/:id/atender", func(c *gin.Context) {
		record(c)
		response.Error(c, appErrors.Clone(appErrors.ErrConflict, "consultation already attended"))
	})
	r.GET("/api/reportes/consultas", func(c *gin.Context) {
		record(c)
		response.JSON(c, http.StatusOK, []models.Consultation{{ID: "c1", Priority: models.PriorityUrgent}}, nil, map[string]interface{}{"periodo": "2024-12", "urgentes": 1, "normales": 0})
	})
	r.GET("/api/reportes/inventario", func(c *gin.Context) {
		record(c)
		response.JSON(c, http.StatusOK, []models.InventoryItem{{ID: "i1"}}, nil, map[string]interface{}{"bajo_stock": 0})
	})
	r.POST("/api/inventario", func(c *gin.Context) {
		record(c)
		var req models.CreateInventoryItemRequest
		_ = c.ShouldBindJSON(&req)
		response.Created(c, models.InventoryItem{ID: "i9", Name: req.Name, Quantity: req.Quantity})
	})
	r.DELETE("/api/inventario/:id", func(c *gin.Context) {
		record(c)
		response.NoContent(c)
	})
	r.POST("/api/uploads/:bucket", func(c *gin.Context) {
		record(c)
		header, err := c.FormFile("file")
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field is required"))
			return
		}
		response.Created(c, models.UploadResult{Path: c.Param("bucket") + "/" + header.Filename, Size: header.Size})
	})
	r.POST("/.netlify/functions/enviarReporte", func(c *gin.Context) {
		record(c)
		header, err := c.FormFile("pdf")
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "pdf field is required"))
			return
		}
		f, _ := header.Open()
		defer f.Close()
		body, _ := io.ReadAll(f)
		api.mu.Lock()
		api.reportName, api.reportBody = header.Filename, body
		api.mu.Unlock()
		response.JSON(c, http.StatusOK, models.ReportDispatchResult{Filename: header.Filename, Size: len(body), Checksum: "abc"}, nil)
	})
	r.GET("/api/realtime", func(c *gin.Context) {
		if c.Query("token") != "access-1" {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		api.hub.Serve(c.Request.Context(), conn)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv
}

func loggedInClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	_, err = c.Login(context.Background(), "enf@example.com", "secreto123")
	require.NoError(t, err)
	return c
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "localhost"})
	assert.Error(t, err)
}

func TestLoginStoresSession(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)

	session := c.Session()
	require.NotNil(t, session)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, models.RoleNurse, session.User.Role)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), session.ExpiresAt)
}

func TestLoginInvalidCredentials(t *testing.T) {
	_, srv := newFakeAPI(t)
	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "enf@example.com", "nope")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, apiErr.Code)
	assert.Nil(t, c.Session())
}

func TestCallsRequireSession(t *testing.T) {
	_, srv := newFakeAPI(t)
	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.ListStudents(context.Background(), "", 1, 10)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestListStudents(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)

	page, err := c.ListStudents(context.Background(), " ana ", 2, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Students, 1)
	assert.Equal(t, "Ana Ruiz", page.Students[0].FullName)
	assert.Equal(t, "Bearer access-1", api.authHeaders[0])
	assert.Equal(t, "busqueda=ana&filas=5&pagina=2", api.queries[0])
}

func TestLatestClinicalRecordsFor(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)

	records, err := c.LatestClinicalRecordsFor(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "estudiante_ids=s1%2Cs2", api.queries[0])

	records, err = c.LatestClinicalRecordsFor(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Len(t, api.queries, 1, "empty id list must not hit the API")
}

func TestServiceReportedError(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)

	_, err := c.AttendConsultation(context.Background(), "c1")

	assert.True(t, IsAPIError(err, appErrors.ErrConflict.Code))
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestTransportError(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)
	srv.Close()

	_, err := c.DailyConsultations(context.Background(), models.FilterAll)

	assert.ErrorIs(t, err, ErrTransport)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestMonthlyReportSources(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)
	window, err := models.NewMonthlyWindow(12, 2024)
	require.NoError(t, err)

	consultations, err := c.MonthlyConsultations(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, consultations, 1)
	assert.Equal(t, "c1", consultations[0].ID)
	assert.Equal(t, "anio=2024&mes=12", api.queries[0])

	items, err := c.InventorySnapshot(context.Background(), &window.End)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "i1", items[0].ID)
	assert.Equal(t, "hasta=2025-01-01T00%3A00%3A00Z", api.queries[1])
}

func TestSendReportUsesPDFField(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)

	err := c.SendReport(context.Background(), "reporte-2024-12.pdf", []byte("%PDF-1.3 data"))
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "reporte-2024-12.pdf", api.reportName)
	assert.Equal(t, []byte("%PDF-1.3 data"), api.reportBody)
}

func TestInsertDeleteUpload(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)

	var item models.InventoryItem
	err := c.Insert(context.Background(), "inventario", models.CreateInventoryItemRequest{Name: "Gasas", Quantity: 40}, &item)
	require.NoError(t, err)
	assert.Equal(t, "i9", item.ID)
	assert.Equal(t, 40, item.Quantity)

	require.NoError(t, c.Delete(context.Background(), "inventario", "i9"))
	assert.ErrorIs(t, c.Delete(context.Background(), "estudiantes", "s1"), ErrUnsupportedTable)
	assert.ErrorIs(t, c.Update(context.Background(), "consultas", "c1", map[string]string{}, nil), ErrUnsupportedTable)

	result, err := c.Upload(context.Background(), "documentos", "receta.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "documentos/receta.pdf", result.Path)
	assert.EqualValues(t, 4, result.Size)
}

func TestLogoutClearsSession(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)

	require.NoError(t, c.Logout(context.Background()))
	assert.Nil(t, c.Session())
	assert.Equal(t, "Bearer access-1", api.authHeaders[0])
	require.NoError(t, c.Logout(context.Background()))
}

func TestSubscribeReceivesTableEvents(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedInClient(t, srv)

	events := make(chan realtime.Event, 4)
	sub, err := c.Subscribe(context.Background(), realtime.TopicConsultations, func(e realtime.Event) { events <- e })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return api.hub.TopicCount(realtime.TopicConsultations) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, api.hub.Publish(context.Background(), realtime.EventInsert, realtime.TopicConsultations, "c1", map[string]string{"id": "c1"}))
	select {
	case e := <-events:
		assert.Equal(t, realtime.EventInsert, e.Type)
		assert.Equal(t, "c1", e.RecordID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	c.UnsubscribeAll()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}
	require.Eventually(t, func() bool { return api.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
