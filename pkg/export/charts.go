package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartWidth  = 640
	chartHeight = 400
)

// Chart labels as printed on the monthly report.
const (
	LabelUrgent   = "Urgente"
	LabelNormal   = "Normal"
	LabelStockOK  = "OK"
	LabelStockLow = "Bajo stock"
	LabelNoData   = "Sin datos"
)

// PriorityCounts holds consultation totals per priority.
type PriorityCounts struct {
	Urgent int
	Normal int
}

// StockCounts splits inventory items by stock status.
type StockCounts struct {
	OK  int
	Low int
}

// RenderPriorityBars draws consultations per priority as a PNG bar chart.
// Both categories are always drawn, zero counts as zero-height bars.
func RenderPriorityBars(counts PriorityCounts) ([]byte, error) {
	top := counts.Urgent
	if counts.Normal > top {
		top = counts.Normal
	}
	if top < 1 {
		top = 1
	}

	graph := chart.BarChart{
		Title:      "Consultas por prioridad",
		TitleStyle: chart.Style{FontSize: 14},
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10}},
		Width:      chartWidth,
		Height:     chartHeight,
		BarWidth:   120,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(top)},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Bars: []chart.Value{
			{Label: LabelUrgent, Value: float64(counts.Urgent), Style: fill(drawing.ColorFromHex("dc3545"))},
			{Label: LabelNormal, Value: float64(counts.Normal), Style: fill(drawing.ColorFromHex("0d6efd"))},
		},
	}
	return renderPNG(graph.Render)
}

// RenderStockPie draws the inventory stock ratio as a PNG pie chart. Empty
// slices are omitted; an empty inventory renders a single placeholder slice.
func RenderStockPie(counts StockCounts) ([]byte, error) {
	values := make([]chart.Value, 0, 2)
	if counts.OK > 0 {
		values = append(values, chart.Value{Label: LabelStockOK, Value: float64(counts.OK), Style: fill(drawing.ColorFromHex("198754"))})
	}
	if counts.Low > 0 {
		values = append(values, chart.Value{Label: LabelStockLow, Value: float64(counts.Low), Style: fill(drawing.ColorFromHex("ffc107"))})
	}
	if len(values) == 0 {
		values = append(values, chart.Value{Label: LabelNoData, Value: 1, Style: fill(drawing.ColorFromHex("adb5bd"))})
	}
	if len(values) == 1 {
		// go-chart fills a lone slice with the label font colour, so draw it as two halves.
		whole := values[0]
		values = []chart.Value{
			{Label: whole.Label, Value: whole.Value / 2, Style: whole.Style},
			{Value: whole.Value / 2, Style: whole.Style},
		}
	}

	graph := chart.PieChart{
		Title:      "Estado del inventario",
		TitleStyle: chart.Style{FontSize: 14},
		Width:      chartHeight,
		Height:     chartHeight,
		Values:     values,
	}
	return renderPNG(graph.Render)
}

func fill(color drawing.Color) chart.Style {
	return chart.Style{FillColor: color, StrokeColor: color, StrokeWidth: 1}
}

func renderPNG(render func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
