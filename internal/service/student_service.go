package service

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/realtime"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

// PhotoBucket holds student profile photos.
const PhotoBucket = "fotos"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByDocument(ctx context.Context, documentID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	UpdatePhoto(ctx context.Context, id, photoPath string) error
}

type blobUploader interface {
	Upload(ctx context.Context, bucket, filename string, r io.Reader) (*models.UploadResult, error)
}

// StudentServiceConfig carries pagination bounds.
type StudentServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	uploads   blobUploader
	audit     auditLogRepository
	events    EventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	cfg       StudentServiceConfig
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, uploads blobUploader, audit auditLogRepository, events EventPublisher, validate *validator.Validate, logger *zap.Logger, cfg StudentServiceConfig) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = 100
	}
	return &StudentService{repo: repo, uploads: uploads, audit: audit, events: events, validator: validate, logger: logger, cfg: cfg}
}

// List returns one page of students matching the search term.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) (*dto.StudentPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.cfg.DefaultPageSize
	}
	if filter.PageSize > s.cfg.MaxPageSize {
		filter.PageSize = s.cfg.MaxPageSize
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return dto.NewStudentPage(students, filter.Page, filter.PageSize, total), nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student. Documents are unique.
func (s *StudentService) Create(ctx context.Context, req models.CreateStudentRequest, meta AuditMeta) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate document")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "document already registered")
	}
	student := &models.Student{
		FullName:   req.FullName,
		DocumentID: req.DocumentID,
		Career:     req.Career,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionStudentCreate, "student", student.ID, student)
	publishEvent(ctx, s.events, s.logger, realtime.EventInsert, realtime.TopicStudents, student.ID, student)
	return student, nil
}

// UploadPhoto stores a profile photo and links it to the student.
func (s *StudentService) UploadPhoto(ctx context.Context, id, filename string, r io.Reader) (*models.Student, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.uploads == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "uploads are not configured")
	}
	result, err := s.uploads.Upload(ctx, PhotoBucket, filename, r)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePhoto(ctx, id, result.Path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link photo")
	}
	path := result.Path
	student.PhotoPath = &path
	publishEvent(ctx, s.events, s.logger, realtime.EventUpdate, realtime.TopicStudents, student.ID, student)
	return student, nil
}
