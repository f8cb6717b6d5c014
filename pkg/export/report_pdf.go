package export

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/jung-kurt/gofpdf"
)

// Fixed placement of the report charts on an A4 portrait page, in millimetres.
const (
	barX, barY, barW, barH = 15.0, 30.0, 180.0, 112.5
	pieX, pieY, pieW, pieH = 55.0, 150.0, 100.0, 100.0
	labelY                 = 262.0
)

// MonthlyReportPDF lays the two report charts out on a single page.
type MonthlyReportPDF struct {
	Title string
}

// NewMonthlyReportPDF returns an assembler with the default heading.
func NewMonthlyReportPDF() *MonthlyReportPDF {
	return &MonthlyReportPDF{Title: "Reporte mensual de enfermería"}
}

// Assemble places the bar and pie PNGs at fixed coordinates, appends the
// period label and serializes the document.
func (a *MonthlyReportPDF) Assemble(bar, pie []byte, label string) ([]byte, error) {
	if len(bar) == 0 || len(pie) == 0 {
		return nil, fmt.Errorf("both charts are required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(a.Title), "", 1, "C", false, 0, "")

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("barras", opts, bytes.NewReader(bar))
	pdf.RegisterImageOptionsReader("pastel", opts, bytes.NewReader(pie))
	pdf.ImageOptions("barras", barX, barY, barW, barH, false, opts, 0, "")
	pdf.ImageOptions("pastel", pieX, pieY, pieW, pieH, false, opts, 0, "")

	pdf.SetY(labelY)
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, tr(label), "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("assemble report: %w", err)
	}
	return output(pdf)
}

// Checksum returns the hex xxhash64 digest of a rendered artifact.
func Checksum(payload []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(payload))
}
