package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Field is a labelled value printed on a record sheet.
type Field struct {
	Label string
	Value string
}

// PDFExporter renders datasets and record sheets into PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := newDocument("P")
	writeTitle(pdf, title)

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, latin1(pdf, header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, latin1(pdf, row[header]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return output(pdf)
}

// RenderSheet prints a title followed by label/value blocks, one per field.
func (e *PDFExporter) RenderSheet(title string, fields []Field) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("sheet requires at least one field")
	}
	pdf := newDocument("P")
	writeTitle(pdf, title)

	for _, field := range fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, latin1(pdf, field.Label), "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, latin1(pdf, field.Value), "", "", false)
		pdf.Ln(2)
	}
	return output(pdf)
}

func newDocument(orientation string) *gofpdf.Fpdf {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	return pdf
}

func writeTitle(pdf *gofpdf.Fpdf, title string) {
	if title == "" {
		return
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, latin1(pdf, strings.ToUpper(title)), "", 1, "C", false, 0, "")
	pdf.Ln(5)
}

// latin1 maps UTF-8 text onto the cp1252 encoding used by the core fonts.
func latin1(pdf *gofpdf.Fpdf, s string) string {
	return pdf.UnicodeTranslatorFromDescriptor("")(s)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
