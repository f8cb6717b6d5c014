package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/enfermeria-api/internal/models"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
	"github.com/noah-isme/enfermeria-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered report ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService turns report rows into CSV or PDF tables.
type ExportService struct {
	csv csvRenderer
	pdf pdfRenderer
}

// NewExportService constructs an exporter with default renderers when nil.
func NewExportService(csv csvRenderer, pdf pdfRenderer) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter(',')
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf}
}

// ConsultationsDataset flattens consultations into export rows.
func ConsultationsDataset(consultations []models.Consultation) export.Dataset {
	headers := []string{"fecha", "estudiante", "motivo", "prioridad", "estado", "atendida_en"}
	rows := make([]map[string]string, 0, len(consultations))
	for _, c := range consultations {
		attended := ""
		if c.AttendedAt != nil {
			attended = c.AttendedAt.Format(time.RFC3339)
		}
		rows = append(rows, map[string]string{
			"fecha":       c.CreatedAt.Format(time.RFC3339),
			"estudiante":  c.StudentName,
			"motivo":      c.Reason,
			"prioridad":   string(c.Priority),
			"estado":      string(c.Status),
			"atendida_en": attended,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// InventoryDataset flattens inventory items into export rows.
func InventoryDataset(items []models.InventoryItem) export.Dataset {
	headers := []string{"nombre", "categoria", "unidad", "cantidad", "stock_minimo", "estado"}
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		status := export.LabelStockOK
		if item.LowStock() {
			status = export.LabelStockLow
		}
		rows = append(rows, map[string]string{
			"nombre":       item.Name,
			"categoria":    item.Category,
			"unidad":       item.Unit,
			"cantidad":     strconv.Itoa(item.Quantity),
			"stock_minimo": strconv.Itoa(item.MinStock),
			"estado":       status,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// Render produces basename.csv or basename.pdf.
func (s *ExportService) Render(format models.ReportFormat, data export.Dataset, title, basename string) (*ExportFile, error) {
	switch format {
	case models.ReportFormatCSV:
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{Filename: basename + ".csv", ContentType: "text/csv; charset=utf-8", Data: payload}, nil
	case models.ReportFormatPDF:
		payload, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{Filename: basename + ".pdf", ContentType: "application/pdf", Data: payload}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
