package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/export"
	"github.com/noah-isme/enfermeria-api/pkg/mail"
)

const (
	dispatchSourceFunction = "function"
	dispatchSourceJob      = "job"
)

var pdfMagic = []byte("%PDF")

type reportMailer interface {
	SendReport(ctx context.Context, body string, attachment mail.Attachment) error
	Recipients() []string
}

// ReportMailService mails report PDFs to the configured recipients.
type ReportMailService struct {
	mailer   reportMailer
	audit    auditLogRepository
	metrics  *MetricsService
	logger   *zap.Logger
	maxBytes int64
}

// NewReportMailService constructs the mail function backend.
func NewReportMailService(mailer reportMailer, audit auditLogRepository, metrics *MetricsService, maxBytes int64, logger *zap.Logger) *ReportMailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &ReportMailService{mailer: mailer, audit: audit, metrics: metrics, logger: logger, maxBytes: maxBytes}
}

// MaxBytes is the largest accepted attachment.
func (s *ReportMailService) MaxBytes() int64 {
	return s.maxBytes
}

// Dispatch validates an uploaded PDF and mails it.
func (s *ReportMailService) Dispatch(ctx context.Context, filename string, pdf []byte, meta AuditMeta) (*models.ReportDispatchResult, error) {
	result, err := s.send(ctx, dispatchSourceFunction, filename, pdf)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionReportDispatch, "report", result.Filename, result)
	return result, nil
}

// SendReport mails a report produced by the server-side monthly job.
func (s *ReportMailService) SendReport(ctx context.Context, filename string, pdf []byte) error {
	_, err := s.send(ctx, dispatchSourceJob, filename, pdf)
	return err
}

func (s *ReportMailService) send(ctx context.Context, source, filename string, pdf []byte) (*models.ReportDispatchResult, error) {
	if len(pdf) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pdf file is required")
	}
	if int64(len(pdf)) > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("pdf exceeds %d bytes", s.maxBytes))
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is not a pdf")
	}
	filename = attachmentName(filename)
	checksum := export.Checksum(pdf)

	err := s.mailer.SendReport(ctx, "Se adjunta el reporte mensual de enfermería.", mail.Attachment{Filename: filename, Content: pdf})
	s.metrics.RecordReportDispatch(source, len(pdf), err)
	if err != nil {
		s.logger.Error("report mail failed", zap.String("file", filename), zap.String("checksum", checksum), zap.Error(err))
		if errors.Is(err, mail.ErrNoRecipients) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "report mail is not configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to send report")
	}
	s.logger.Sugar().Infow("report mailed", "source", source, "file", filename, "bytes", len(pdf), "checksum", checksum)
	return &models.ReportDispatchResult{
		Filename:   filename,
		Size:       len(pdf),
		Checksum:   checksum,
		Recipients: s.mailer.Recipients(),
	}, nil
}

func attachmentName(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "reporte.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
