package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/realtime"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type consultationRepository interface {
	ListBetween(ctx context.Context, from, to time.Time, filter models.ConsultationFilter) ([]models.Consultation, error)
	FindByID(ctx context.Context, id string) (*models.Consultation, error)
	Create(ctx context.Context, consultation *models.Consultation) error
	MarkAttended(ctx context.Context, id, attendedBy string, at time.Time) (bool, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// ConsultationService manages the daily consultation queue.
type ConsultationService struct {
	repo      consultationRepository
	students  studentLookup
	cache     cacheInvalidator
	audit     auditLogRepository
	events    EventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewConsultationService constructs the service. Days are cut in loc.
func NewConsultationService(repo consultationRepository, students studentLookup, cache cacheInvalidator, audit auditLogRepository, events EventPublisher, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *ConsultationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ConsultationService{
		repo:      repo,
		students:  students,
		cache:     cache,
		audit:     audit,
		events:    events,
		validator: validate,
		logger:    logger,
		location:  loc,
		now:       time.Now,
	}
}

// Daily lists today's consultations, urgent first then by arrival.
func (s *ConsultationService) Daily(ctx context.Context, filter models.ConsultationFilter) ([]models.Consultation, error) {
	now := s.now().In(s.location)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	to := from.AddDate(0, 0, 1)
	consultations, err := s.repo.ListBetween(ctx, from, to, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list consultations")
	}
	if consultations == nil {
		consultations = []models.Consultation{}
	}
	return consultations, nil
}

// Create enqueues a pending consultation.
func (s *ConsultationService) Create(ctx context.Context, req models.CreateConsultationRequest, meta AuditMeta) (*models.Consultation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consultation payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	consultation := &models.Consultation{
		StudentID:   req.StudentID,
		StudentName: student.FullName,
		Reason:      req.Reason,
		Priority:    req.Priority,
		Status:      models.StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, consultation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create consultation")
	}
	s.invalidateReports(ctx)
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionConsultCreate, "consultation", consultation.ID, map[string]interface{}{
		"student_id": consultation.StudentID,
		"priority":   consultation.Priority,
	})
	publishEvent(ctx, s.events, s.logger, realtime.EventInsert, realtime.TopicConsultations, consultation.ID, consultation)
	return consultation, nil
}

// Attend marks a pending consultation as attended.
func (s *ConsultationService) Attend(ctx context.Context, id string, meta AuditMeta) (*models.Consultation, error) {
	consultation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "consultation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultation")
	}
	if consultation.Status == models.StatusAttended {
		return nil, appErrors.Clone(appErrors.ErrConflict, "consultation already attended")
	}
	at := s.now().UTC()
	updated, err := s.repo.MarkAttended(ctx, id, meta.UserID, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attend consultation")
	}
	if !updated {
		// lost a race with another nurse
		return nil, appErrors.Clone(appErrors.ErrConflict, "consultation already attended")
	}
	consultation.Status = models.StatusAttended
	consultation.AttendedAt = &at
	if meta.UserID != "" {
		by := meta.UserID
		consultation.AttendedBy = &by
	}
	s.invalidateReports(ctx)
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionConsultAttend, "consultation", id, nil)
	publishEvent(ctx, s.events, s.logger, realtime.EventUpdate, realtime.TopicConsultations, id, consultation)
	return consultation, nil
}

func (s *ConsultationService) invalidateReports(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, consultationReportCachePrefix+"*")
	}
}
