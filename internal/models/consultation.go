package models

import "time"

// ConsultationPriority ranks the daily queue.
type ConsultationPriority string

const (
	PriorityUrgent ConsultationPriority = "urgente"
	PriorityNormal ConsultationPriority = "normal"
)

// ConsultationStatus tracks whether a consultation has been seen.
type ConsultationStatus string

const (
	StatusPending  ConsultationStatus = "pendiente"
	StatusAttended ConsultationStatus = "atendida"
)

// ConsultationFilter selects a slice of the daily queue.
type ConsultationFilter string

const (
	FilterPending  ConsultationFilter = "pendientes"
	FilterAttended ConsultationFilter = "atendidas"
	FilterAll      ConsultationFilter = "todas"
)

// ParseConsultationFilter maps the query value onto a filter, defaulting to all.
func ParseConsultationFilter(raw string) (ConsultationFilter, bool) {
	switch ConsultationFilter(raw) {
	case "", FilterAll:
		return FilterAll, true
	case FilterPending, FilterAttended:
		return ConsultationFilter(raw), true
	default:
		return "", false
	}
}

// Consultation is a visit waiting in, or already served by, the infirmary queue.
type Consultation struct {
	ID          string               `db:"id" json:"id"`
	StudentID   string               `db:"student_id" json:"estudiante_id"`
	StudentName string               `db:"student_name" json:"estudiante,omitempty"`
	Reason      string               `db:"reason" json:"motivo"`
	Priority    ConsultationPriority `db:"priority" json:"prioridad"`
	Status      ConsultationStatus   `db:"status" json:"estado"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	AttendedAt  *time.Time           `db:"attended_at" json:"atendida_en,omitempty"`
	AttendedBy  *string              `db:"attended_by" json:"atendida_por,omitempty"`
}

// CreateConsultationRequest enqueues a new consultation.
type CreateConsultationRequest struct {
	StudentID string               `json:"estudiante_id" validate:"required,uuid"`
	Reason    string               `json:"motivo" validate:"required,max=500"`
	Priority  ConsultationPriority `json:"prioridad" validate:"required,oneof=urgente normal"`
}
