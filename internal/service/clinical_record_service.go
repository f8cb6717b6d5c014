package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/realtime"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

const maxLatestBatch = 100

type clinicalRecordRepository interface {
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.ClinicalRecord, error)
	LatestForStudents(ctx context.Context, studentIDs []string) ([]models.ClinicalRecord, error)
	FindByID(ctx context.Context, id string) (*models.ClinicalRecord, error)
	Create(ctx context.Context, record *models.ClinicalRecord) error
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// ClinicalRecordService serves students' clinical files.
type ClinicalRecordService struct {
	repo      clinicalRecordRepository
	students  studentLookup
	audit     auditLogRepository
	events    EventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClinicalRecordService constructs the service.
func NewClinicalRecordService(repo clinicalRecordRepository, students studentLookup, audit auditLogRepository, events EventPublisher, validate *validator.Validate, logger *zap.Logger) *ClinicalRecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClinicalRecordService{repo: repo, students: students, audit: audit, events: events, validator: validate, logger: logger}
}

// ListByStudent returns the newest records of a student first.
func (s *ClinicalRecordService) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.ClinicalRecord, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "estudiante_id is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 1
	}
	records, err := s.repo.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clinical records")
	}
	if records == nil {
		records = []models.ClinicalRecord{}
	}
	return records, nil
}

// LatestFor returns at most one record per student id.
func (s *ClinicalRecordService) LatestFor(ctx context.Context, studentIDs []string) ([]models.ClinicalRecord, error) {
	ids := dedupe(studentIDs)
	if len(ids) == 0 {
		return []models.ClinicalRecord{}, nil
	}
	if len(ids) > maxLatestBatch {
		return nil, appErrors.Clone(appErrors.ErrValidation, "too many student ids")
	}
	records, err := s.repo.LatestForStudents(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest clinical records")
	}
	if records == nil {
		records = []models.ClinicalRecord{}
	}
	return records, nil
}

// Get returns one clinical record.
func (s *ClinicalRecordService) Get(ctx context.Context, id string) (*models.ClinicalRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clinical record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinical record")
	}
	return record, nil
}

// Create appends a record to a student's file.
func (s *ClinicalRecordService) Create(ctx context.Context, req models.CreateClinicalRecordRequest, meta AuditMeta) (*models.ClinicalRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clinical record payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	record := &models.ClinicalRecord{
		StudentID: req.StudentID,
		Reason:    req.Reason,
		History:   req.History,
		Diagnosis: req.Diagnosis,
		Treatment: req.Treatment,
		Notes:     req.Notes,
	}
	if meta.UserID != "" {
		author := meta.UserID
		record.CreatedBy = &author
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clinical record")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionRecordCreate, "clinical_record", record.ID, nil)
	publishEvent(ctx, s.events, s.logger, realtime.EventInsert, realtime.TopicClinicalRecords, record.ID, record)
	return record, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
