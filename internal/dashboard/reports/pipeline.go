package reports

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/pkg/export"
)

// Dispatcher delivers an assembled report.
type Dispatcher interface {
	SendReport(ctx context.Context, filename string, pdf []byte) error
}

// Assembler turns the two chart images into a document.
type Assembler interface {
	Assemble(bar, pie []byte, label string) ([]byte, error)
}

// Result describes a dispatched report.
type Result struct {
	Filename string
	Size     int
	Checksum string
	Data     Data
}

// Pipeline runs aggregate, render, assemble and send in order.
type Pipeline struct {
	aggregator *Aggregator
	assembler  Assembler
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewPipeline wires a pipeline. A nil assembler uses export.NewMonthlyReportPDF.
func NewPipeline(aggregator *Aggregator, assembler Assembler, dispatcher Dispatcher, logger *zap.Logger) *Pipeline {
	if assembler == nil {
		assembler = export.NewMonthlyReportPDF()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{aggregator: aggregator, assembler: assembler, dispatcher: dispatcher, logger: logger}
}

// Filename is the attachment name used for a window.
func Filename(window models.MonthlyWindow) string {
	return fmt.Sprintf("reporte-%s.pdf", window.Key())
}

// Build aggregates the window and renders the PDF without sending it.
func (p *Pipeline) Build(ctx context.Context, window models.MonthlyWindow) ([]byte, Data, error) {
	data, err := p.aggregator.Load(ctx, window)
	if err != nil {
		return nil, data, fmt.Errorf("aggregate %s: %w", window.Key(), err)
	}
	bar, err := export.RenderPriorityBars(data.Priorities())
	if err != nil {
		return nil, data, fmt.Errorf("render priority chart: %w", err)
	}
	pie, err := export.RenderStockPie(data.Stock())
	if err != nil {
		return nil, data, fmt.Errorf("render stock chart: %w", err)
	}
	doc, err := p.assembler.Assemble(bar, pie, window.Label())
	if err != nil {
		return nil, data, fmt.Errorf("assemble report: %w", err)
	}
	return doc, data, nil
}

// GenerateAndSend builds the report and hands it to the dispatcher. It stops
// at the first failing step and never retries.
func (p *Pipeline) GenerateAndSend(ctx context.Context, window models.MonthlyWindow) (*Result, error) {
	doc, data, err := p.Build(ctx, window)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Filename: Filename(window),
		Size:     len(doc),
		Checksum: export.Checksum(doc),
		Data:     data,
	}
	if err := p.dispatcher.SendReport(ctx, result.Filename, doc); err != nil {
		return nil, fmt.Errorf("send report: %w", err)
	}
	p.logger.Sugar().Infow("monthly report sent",
		"period", window.Key(),
		"bytes", result.Size,
		"checksum", result.Checksum,
		"consultations", len(data.Consultations),
		"items", len(data.Inventory),
	)
	return result, nil
}
