package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

const clinicalRecordColumns = "id, student_id, reason, history, diagnosis, treatment, notes, created_by, created_at"

// ClinicalRecordRepository manages persistence for clinical records.
type ClinicalRecordRepository struct {
	db *sqlx.DB
}

// NewClinicalRecordRepository constructs a ClinicalRecordRepository.
func NewClinicalRecordRepository(db *sqlx.DB) *ClinicalRecordRepository {
	return &ClinicalRecordRepository{db: db}
}

// ListByStudent returns the newest records of a student, most recent first.
func (r *ClinicalRecordRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.ClinicalRecord, error) {
	if limit <= 0 {
		limit = 1
	}
	query := fmt.Sprintf("SELECT %s FROM clinical_records WHERE student_id = $1 ORDER BY created_at DESC, id DESC LIMIT %d", clinicalRecordColumns, limit)
	records := make([]models.ClinicalRecord, 0, limit)
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list clinical records: %w", err)
	}
	return records, nil
}

// LatestForStudents returns the most recent record of each given student.
// Students without records are absent from the result.
func (r *ClinicalRecordRepository) LatestForStudents(ctx context.Context, studentIDs []string) ([]models.ClinicalRecord, error) {
	if len(studentIDs) == 0 {
		return []models.ClinicalRecord{}, nil
	}
	query := fmt.Sprintf(`SELECT DISTINCT ON (student_id) %s FROM clinical_records
        WHERE student_id = ANY($1) ORDER BY student_id, created_at DESC, id DESC`, clinicalRecordColumns)
	var records []models.ClinicalRecord
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("latest clinical records: %w", err)
	}
	return records, nil
}

// FindByID fetches a clinical record by ID.
func (r *ClinicalRecordRepository) FindByID(ctx context.Context, id string) (*models.ClinicalRecord, error) {
	var record models.ClinicalRecord
	if err := r.db.GetContext(ctx, &record, "SELECT "+clinicalRecordColumns+" FROM clinical_records WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a new clinical record.
func (r *ClinicalRecordRepository) Create(ctx context.Context, record *models.ClinicalRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO clinical_records (id, student_id, reason, history, diagnosis, treatment, notes, created_by, created_at)
        VALUES (:id, :student_id, :reason, :history, :diagnosis, :treatment, :notes, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create clinical record: %w", err)
	}
	return nil
}
