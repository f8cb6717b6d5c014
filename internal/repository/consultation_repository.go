package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

const consultationSelect = `SELECT c.id, c.student_id, s.full_name AS student_name, c.reason, c.priority, c.status, c.created_at, c.attended_at, c.attended_by
        FROM consultations c JOIN students s ON s.id = c.student_id`

// ConsultationRepository manages the consultation queue.
type ConsultationRepository struct {
	db *sqlx.DB
}

// NewConsultationRepository constructs a ConsultationRepository.
func NewConsultationRepository(db *sqlx.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// ListBetween returns consultations created in [from, to), urgent first then by arrival.
func (r *ConsultationRepository) ListBetween(ctx context.Context, from, to time.Time, filter models.ConsultationFilter) ([]models.Consultation, error) {
	query := consultationSelect + " WHERE c.created_at >= $1 AND c.created_at < $2"
	args := []interface{}{from, to}
	switch filter {
	case models.FilterPending:
		query += " AND c.status = $3"
		args = append(args, models.StatusPending)
	case models.FilterAttended:
		query += " AND c.status = $3"
		args = append(args, models.StatusAttended)
	}
	query += fmt.Sprintf(" ORDER BY CASE c.priority WHEN '%s' THEN 0 ELSE 1 END, c.created_at ASC", models.PriorityUrgent)

	consultations := make([]models.Consultation, 0)
	if err := r.db.SelectContext(ctx, &consultations, query, args...); err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	return consultations, nil
}

// FindByID fetches a consultation by ID.
func (r *ConsultationRepository) FindByID(ctx context.Context, id string) (*models.Consultation, error) {
	var consultation models.Consultation
	if err := r.db.GetContext(ctx, &consultation, consultationSelect+" WHERE c.id = $1", id); err != nil {
		return nil, err
	}
	return &consultation, nil
}

// Create inserts a pending consultation.
func (r *ConsultationRepository) Create(ctx context.Context, consultation *models.Consultation) error {
	if consultation.ID == "" {
		consultation.ID = uuid.NewString()
	}
	if consultation.CreatedAt.IsZero() {
		consultation.CreatedAt = time.Now().UTC()
	}
	if consultation.Status == "" {
		consultation.Status = models.StatusPending
	}
	const query = `INSERT INTO consultations (id, student_id, reason, priority, status, created_at)
        VALUES (:id, :student_id, :reason, :priority, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, consultation); err != nil {
		return fmt.Errorf("create consultation: %w", err)
	}
	return nil
}

// MarkAttended transitions a pending consultation to attended. It reports
// false when the consultation is missing or was already attended.
func (r *ConsultationRepository) MarkAttended(ctx context.Context, id, attendedBy string, at time.Time) (bool, error) {
	var by interface{}
	if attendedBy != "" {
		by = attendedBy
	}
	res, err := r.db.ExecContext(ctx, `UPDATE consultations SET status = $2, attended_at = $3, attended_by = $4 WHERE id = $1 AND status = $5`,
		id, models.StatusAttended, at, by, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("attend consultation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attend consultation: %w", err)
	}
	return n > 0, nil
}
