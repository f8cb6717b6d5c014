package dto

import (
	"time"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

// MonthlyConsultationsReport groups a month's consultations with priority totals.
// GET /reportes/consultas sends Consultations as data and the totals as meta.
type MonthlyConsultationsReport struct {
	Window        models.MonthlyWindow  `json:"periodo"`
	Consultations []models.Consultation `json:"consultas"`
	Urgent        int                   `json:"urgentes"`
	Normal        int                   `json:"normales"`
}

// InventoryReport is an inventory snapshot with its low-stock count.
type InventoryReport struct {
	AsOf     *time.Time             `json:"hasta,omitempty"`
	Items    []models.InventoryItem `json:"insumos"`
	LowStock int                    `json:"bajo_stock"`
}

// ReportJobResponse is returned after enqueueing a monthly report.
type ReportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"estado"`
}
