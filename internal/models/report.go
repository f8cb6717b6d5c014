package models

import "time"

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatJSON ReportFormat = "json"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
)

// ParseReportFormat defaults an empty value to JSON.
func ParseReportFormat(raw string) (ReportFormat, bool) {
	switch ReportFormat(raw) {
	case "", ReportFormatJSON:
		return ReportFormatJSON, true
	case ReportFormatCSV, ReportFormatPDF:
		return ReportFormat(raw), true
	default:
		return "", false
	}
}

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued ReportStatus = "QUEUED"
	ReportStatusSent   ReportStatus = "SENT"
	ReportStatusFailed ReportStatus = "FAILED"
)

// MonthlyReportRequest asks the server to generate and mail a month's report.
type MonthlyReportRequest struct {
	Month int `json:"mes" validate:"required,min=1,max=12"`
	Year  int `json:"anio" validate:"required,min=1000,max=9999"`
}

// ReportJob tracks one generate-and-send run.
type ReportJob struct {
	ID           string       `json:"id"`
	Window       string       `json:"periodo"`
	Status       ReportStatus `json:"estado"`
	Checksum     string       `json:"checksum,omitempty"`
	RequestedBy  string       `json:"solicitado_por,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	ErrorMessage *string      `json:"error,omitempty"`
}

// ReportDispatchResult is returned by the report mail function.
type ReportDispatchResult struct {
	Filename   string   `json:"archivo"`
	Size       int      `json:"bytes"`
	Checksum   string   `json:"checksum"`
	Recipients []string `json:"destinatarios"`
}

// UploadResult describes a stored blob.
type UploadResult struct {
	Path      string    `json:"path"`
	URL       string    `json:"url,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Size      int64     `json:"bytes"`
	ETag      string    `json:"etag"`
}
