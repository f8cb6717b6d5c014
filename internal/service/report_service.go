package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/models"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

const consultationReportCachePrefix = "reportes:consultas:"

type consultationRangeReader interface {
	ListBetween(ctx context.Context, from, to time.Time, filter models.ConsultationFilter) ([]models.Consultation, error)
}

type inventorySnapshotReader interface {
	List(ctx context.Context) ([]models.InventoryItem, error)
	SnapshotAsOf(ctx context.Context, asOf time.Time) ([]models.InventoryItem, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// ReportService serves the data behind the monthly dashboard reports.
type ReportService struct {
	consultations consultationRangeReader
	inventory     inventorySnapshotReader
	cache         reportCache
	exporter      *ExportService
	cacheTTL      time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(consultations consultationRangeReader, inventory inventorySnapshotReader, cache reportCache, exporter *ExportService, cacheTTL time.Duration, logger *zap.Logger) *ReportService {
	if exporter == nil {
		exporter = NewExportService(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		consultations: consultations,
		inventory:     inventory,
		cache:         cache,
		exporter:      exporter,
		cacheTTL:      cacheTTL,
		logger:        logger,
		now:           time.Now,
	}
}

// MonthlyConsultations lists every consultation created inside window.
func (s *ReportService) MonthlyConsultations(ctx context.Context, window models.MonthlyWindow) ([]models.Consultation, error) {
	key := consultationReportCachePrefix + window.Key()
	var cached []models.Consultation
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	consultations, err := s.consultations.ListBetween(ctx, window.Start, window.End, models.FilterAll)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load monthly consultations")
	}
	if consultations == nil {
		consultations = []models.Consultation{}
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, consultations, s.cacheTTL)
	}
	return consultations, nil
}

// InventorySnapshot returns current stock, or stock as of asOf when given.
func (s *ReportService) InventorySnapshot(ctx context.Context, asOf *time.Time) ([]models.InventoryItem, error) {
	var (
		items []models.InventoryItem
		err   error
	)
	if asOf == nil {
		items, err = s.inventory.List(ctx)
	} else {
		items, err = s.inventory.SnapshotAsOf(ctx, *asOf)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inventory snapshot")
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	return items, nil
}

// ConsultationsReport wraps the month's consultations with priority totals.
func (s *ReportService) ConsultationsReport(ctx context.Context, window models.MonthlyWindow) (*dto.MonthlyConsultationsReport, error) {
	consultations, err := s.MonthlyConsultations(ctx, window)
	if err != nil {
		return nil, err
	}
	report := &dto.MonthlyConsultationsReport{Window: window, Consultations: consultations}
	for _, c := range consultations {
		if c.Priority == models.PriorityUrgent {
			report.Urgent++
		} else {
			report.Normal++
		}
	}
	return report, nil
}

// InventoryReport wraps the snapshot with the number of low-stock items.
func (s *ReportService) InventoryReport(ctx context.Context, asOf *time.Time) (*dto.InventoryReport, error) {
	items, err := s.InventorySnapshot(ctx, asOf)
	if err != nil {
		return nil, err
	}
	report := &dto.InventoryReport{AsOf: asOf, Items: items}
	for _, item := range items {
		if item.LowStock() {
			report.LowStock++
		}
	}
	return report, nil
}

// ExportConsultations renders the month's consultations as CSV or PDF.
func (s *ReportService) ExportConsultations(ctx context.Context, window models.MonthlyWindow, format models.ReportFormat) (*ExportFile, error) {
	consultations, err := s.MonthlyConsultations(ctx, window)
	if err != nil {
		return nil, err
	}
	return s.exporter.Render(format, ConsultationsDataset(consultations), "Consultas "+window.Label(), "consultas-"+window.Key())
}

// ExportInventory renders the inventory snapshot as CSV or PDF.
func (s *ReportService) ExportInventory(ctx context.Context, asOf *time.Time, format models.ReportFormat) (*ExportFile, error) {
	items, err := s.InventorySnapshot(ctx, asOf)
	if err != nil {
		return nil, err
	}
	stamp := s.now()
	if asOf != nil {
		stamp = *asOf
	}
	return s.exporter.Render(format, InventoryDataset(items), "Inventario", "inventario-"+stamp.UTC().Format("2006-01-02"))
}
