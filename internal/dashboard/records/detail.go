package records

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/pkg/export"
)

// Placeholder stands in for clinical values that were never captured.
const Placeholder = "—"

const visitLayout = "02/01/2006 15:04"

// DetailSource fetches clinical records for the detail view.
type DetailSource interface {
	LatestClinicalRecords(ctx context.Context, studentID string, limit int) ([]models.ClinicalRecord, error)
	GetClinicalRecord(ctx context.Context, id string) (*models.ClinicalRecord, error)
}

// DetailView is a student's identity plus their most recent clinical record.
type DetailView struct {
	Student models.Student
	Record  *models.ClinicalRecord
}

// Identity returns the header block of the view.
func (v DetailView) Identity() []export.Field {
	return []export.Field{
		{Label: "Nombre", Value: orPlaceholder(v.Student.FullName)},
		{Label: "Documento", Value: orPlaceholder(v.Student.DocumentID)},
		{Label: "Carrera", Value: orPlaceholder(v.Student.Career)},
	}
}

// Clinical returns the clinical fields, with Placeholder for anything missing.
func (v DetailView) Clinical() []export.Field {
	var r models.ClinicalRecord
	visit := ""
	if v.Record != nil {
		r = *v.Record
		if !r.CreatedAt.IsZero() {
			visit = r.CreatedAt.Format(visitLayout)
		}
	}
	return []export.Field{
		{Label: "Última visita", Value: orPlaceholder(visit)},
		{Label: "Motivo", Value: orPlaceholder(r.Reason)},
		{Label: "Antecedentes", Value: orPlaceholder(r.History)},
		{Label: "Diagnóstico", Value: orPlaceholder(r.Diagnosis)},
		{Label: "Tratamiento", Value: orPlaceholder(r.Treatment)},
		{Label: "Observaciones", Value: orPlaceholder(r.Notes)},
	}
}

// Fields is the identity header followed by the clinical fields.
func (v DetailView) Fields() []export.Field {
	return append(v.Identity(), v.Clinical()...)
}

// PrintLines is the print-only rendition: one "Label: value" line per field.
func (v DetailView) PrintLines() []string {
	fields := v.Fields()
	lines := make([]string, 0, len(fields)+1)
	lines = append(lines, "Expediente clínico")
	for _, f := range fields {
		lines = append(lines, f.Label+": "+f.Value)
	}
	return lines
}

// PrintPDF renders the print view as a one-record PDF sheet.
func (v DetailView) PrintPDF() ([]byte, error) {
	return export.NewPDFExporter().RenderSheet("Expediente clínico - "+orPlaceholder(v.Student.FullName), v.Fields())
}

// DetailLoader opens the record detail of a student.
type DetailLoader struct {
	source DetailSource
	logger *zap.Logger
}

// NewDetailLoader constructs a loader.
func NewDetailLoader(source DetailSource, logger *zap.Logger) *DetailLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailLoader{source: source, logger: logger}
}

// Open loads the record by id when the list already resolved it, otherwise
// the student's latest record. Fetch failures degrade to an empty record.
func (d *DetailLoader) Open(ctx context.Context, student models.Student, lastRecordID *string) DetailView {
	view := DetailView{Student: student}

	if lastRecordID != nil && *lastRecordID != "" {
		record, err := d.source.GetClinicalRecord(ctx, *lastRecordID)
		if err != nil {
			d.logger.Warn("clinical record fetch failed", zap.String("record_id", *lastRecordID), zap.Error(err))
			return view
		}
		view.Record = record
		return view
	}

	records, err := d.source.LatestClinicalRecords(ctx, student.ID, 1)
	if err != nil {
		d.logger.Warn("latest clinical record fetch failed", zap.String("student_id", student.ID), zap.Error(err))
		return view
	}
	if len(records) > 0 {
		record := records[0]
		view.Record = &record
	}
	return view
}

// OpenRow is Open for a row of the student list.
func (d *DetailLoader) OpenRow(ctx context.Context, row Row) DetailView {
	return d.Open(ctx, row.Student, row.LastRecordID)
}

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return Placeholder
	}
	return value
}
