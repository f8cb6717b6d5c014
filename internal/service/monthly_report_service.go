package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/dashboard/reports"
	"github.com/noah-isme/enfermeria-api/internal/models"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/jobs"
)

const monthlyReportJobType = "monthly_report"

type reportGenerator interface {
	GenerateAndSend(ctx context.Context, window models.MonthlyWindow) (*reports.Result, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// MonthlyReportService runs generate-and-send for a month in the background.
// Jobs are at-most-once: a failed run is reported and never retried.
type MonthlyReportService struct {
	generator reportGenerator
	queue     jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	jobs    map[string]*models.ReportJob
	lastRun string
}

// NewMonthlyReportService constructs the service. Call AttachQueue before Enqueue.
func NewMonthlyReportService(generator reportGenerator, validate *validator.Validate, logger *zap.Logger) *MonthlyReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonthlyReportService{
		generator: generator,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		jobs:      make(map[string]*models.ReportJob),
	}
}

// NewQueue builds the worker queue bound to this service.
func (s *MonthlyReportService) NewQueue(workers int) *jobs.Queue {
	q := jobs.NewQueue("monthly-reports", s.Handle, jobs.QueueConfig{
		Workers:    workers,
		NoRetry:    true,
		OnComplete: s.Complete,
		Logger:     s.logger,
	})
	s.AttachQueue(q)
	return q
}

// AttachQueue sets the queue that receives new jobs.
func (s *MonthlyReportService) AttachQueue(q jobEnqueuer) {
	s.mu.Lock()
	s.queue = q
	s.mu.Unlock()
}

// Enqueue validates the period and schedules a run.
func (s *MonthlyReportService) Enqueue(_ context.Context, req models.MonthlyReportRequest, actorID string) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report period")
	}
	window, err := models.NewMonthlyWindow(req.Month, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()
	if queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "report worker is not running")
	}

	job := &models.ReportJob{
		ID:          uuid.NewString(),
		Window:      window.Key(),
		Status:      models.ReportStatusQueued,
		RequestedBy: actorID,
		CreatedAt:   s.now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if err := queue.Enqueue(jobs.Job{ID: job.ID, Type: monthlyReportJobType, Payload: window}); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue report")
	}
	s.logger.Sugar().Infow("monthly report queued", "job_id", job.ID, "period", job.Window, "requested_by", actorID)
	copied := *job
	return &copied, nil
}

// Get returns a job's current status.
func (s *MonthlyReportService) Get(_ context.Context, id string) (*models.ReportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	copied := *job
	return &copied, nil
}

// List returns known jobs, newest first.
func (s *MonthlyReportService) List(_ context.Context) []models.ReportJob {
	s.mu.RLock()
	out := make([]models.ReportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Handle is the queue handler.
func (s *MonthlyReportService) Handle(ctx context.Context, job jobs.Job) error {
	window, ok := job.Payload.(models.MonthlyWindow)
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	result, err := s.generator.GenerateAndSend(ctx, window)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if rec, ok := s.jobs[job.ID]; ok {
		rec.Checksum = result.Checksum
	}
	s.mu.Unlock()
	return nil
}

// Complete records the final outcome of a job.
func (s *MonthlyReportService) Complete(job jobs.Job, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[job.ID]
	if !ok {
		return
	}
	finished := s.now().UTC()
	rec.FinishedAt = &finished
	if err != nil {
		msg := err.Error()
		rec.Status = models.ReportStatusFailed
		rec.ErrorMessage = &msg
		s.logger.Error("monthly report failed", zap.String("job_id", job.ID), zap.String("period", rec.Window), zap.Error(err))
		return
	}
	rec.Status = models.ReportStatusSent
}

// StartSchedule enqueues last month's report once, on the first day of every
// month. It checks every interval until ctx is done.
func (s *MonthlyReportService) StartSchedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			s.scheduleTick(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *MonthlyReportService) scheduleTick(ctx context.Context) {
	now := s.now()
	if now.Day() != 1 {
		return
	}
	prev := now.AddDate(0, -1, 0)
	req := models.MonthlyReportRequest{Month: int(prev.Month()), Year: prev.Year()}
	key := fmt.Sprintf("%04d-%02d", req.Year, req.Month)

	s.mu.Lock()
	if s.lastRun == key {
		s.mu.Unlock()
		return
	}
	s.lastRun = key
	s.mu.Unlock()

	if _, err := s.Enqueue(ctx, req, "scheduler"); err != nil {
		s.logger.Warn("scheduled monthly report not queued", zap.String("period", key), zap.Error(err))
	}
}
