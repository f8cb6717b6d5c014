// Package reports builds the monthly infirmary report: it loads a month of
// consultations plus an inventory snapshot, renders both charts, assembles
// them into a one-page PDF and hands the document to a dispatcher.
package reports

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/pkg/export"
)

// Snapshot modes for the inventory half of the report.
const (
	SnapshotCurrent  = "current"
	SnapshotWindowed = "windowed"
)

// Source provides the data behind a monthly report.
type Source interface {
	MonthlyConsultations(ctx context.Context, window models.MonthlyWindow) ([]models.Consultation, error)
	InventorySnapshot(ctx context.Context, asOf *time.Time) ([]models.InventoryItem, error)
}

// Data is the aggregated content of one month.
type Data struct {
	Window        models.MonthlyWindow
	Consultations []models.Consultation
	Inventory     []models.InventoryItem
}

// Priorities counts consultations per priority.
func (d Data) Priorities() export.PriorityCounts {
	var counts export.PriorityCounts
	for _, c := range d.Consultations {
		if c.Priority == models.PriorityUrgent {
			counts.Urgent++
		} else {
			counts.Normal++
		}
	}
	return counts
}

// Stock splits the inventory by stock status.
func (d Data) Stock() export.StockCounts {
	var counts export.StockCounts
	for _, item := range d.Inventory {
		if item.LowStock() {
			counts.Low++
		} else {
			counts.OK++
		}
	}
	return counts
}

// Aggregator loads consultations and inventory for a window concurrently.
type Aggregator struct {
	source       Source
	snapshotMode string
	logger       *zap.Logger

	mu      sync.Mutex
	loading bool
}

// NewAggregator constructs an aggregator. An unknown mode falls back to current stock.
func NewAggregator(source Source, snapshotMode string, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if snapshotMode != SnapshotWindowed {
		snapshotMode = SnapshotCurrent
	}
	return &Aggregator{source: source, snapshotMode: snapshotMode, logger: logger}
}

// Loading reports whether a Load is in flight.
func (a *Aggregator) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// Load fetches both collections. If either fetch fails, both are returned
// empty together with the error.
func (a *Aggregator) Load(ctx context.Context, window models.MonthlyWindow) (Data, error) {
	a.setLoading(true)
	defer a.setLoading(false)

	var (
		consultations []models.Consultation
		inventory     []models.InventoryItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		consultations, err = a.source.MonthlyConsultations(gctx, window)
		return err
	})
	g.Go(func() error {
		var asOf *time.Time
		if a.snapshotMode == SnapshotWindowed {
			end := window.End
			asOf = &end
		}
		var err error
		inventory, err = a.source.InventorySnapshot(gctx, asOf)
		return err
	})

	data := Data{Window: window, Consultations: []models.Consultation{}, Inventory: []models.InventoryItem{}}
	if err := g.Wait(); err != nil {
		a.logger.Warn("monthly aggregation failed", zap.String("period", window.Key()), zap.Error(err))
		return data, err
	}
	if consultations != nil {
		data.Consultations = consultations
	}
	if inventory != nil {
		data.Inventory = inventory
	}
	return data, nil
}

func (a *Aggregator) setLoading(v bool) {
	a.mu.Lock()
	a.loading = v
	a.mu.Unlock()
}
