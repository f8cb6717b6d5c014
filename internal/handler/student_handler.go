package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/response"
)

// photoField is the multipart field carrying a profile photo.
const photoField = "foto"

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) (*dto.StudentPage, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, req models.CreateStudentRequest, meta service.AuditMeta) (*models.Student, error)
	UploadPhoto(ctx context.Context, id, filename string, r io.Reader) (*models.Student, error)
}

// StudentHandler serves the student registry.
type StudentHandler struct {
	service studentService
}

// NewStudentHandler builds the handler.
func NewStudentHandler(svc studentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// List godoc
// @Summary Search students
// @Description Case-insensitive search over name, document and career, ordered by name
// @Tags Students
// @Produce json
// @Param busqueda query string false "Search term"
// @Param pagina query int false "Page (1-based)"
// @Param filas query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /estudiantes [get]
func (h *StudentHandler) List(c *gin.Context) {
	page, err := queryInt(c, "pagina", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
	size, err := queryInt(c, "filas", 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), models.StudentFilter{
		Search:   c.Query("busqueda"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, models.NewPagination(result.Page, result.PageSize, result.Total))
}

// Get godoc
// @Summary Student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /estudiantes/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /estudiantes [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	student, err := h.service.Create(c.Request.Context(), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// UploadPhoto godoc
// @Summary Upload profile photo
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Student ID"
// @Param foto formData file true "Photo"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /estudiantes/{id}/foto [post]
func (h *StudentHandler) UploadPhoto(c *gin.Context) {
	header, err := c.FormFile(photoField)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "foto field is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()

	student, err := h.service.UploadPhoto(c.Request.Context(), c.Param("id"), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
