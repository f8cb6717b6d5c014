package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

const studentColumns = "s.id, s.full_name, s.document_id, s.career, s.photo_path, s.created_at, s.updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns one page of students matching the search term and the total match count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	var args []interface{}
	if term := strings.TrimSpace(filter.Search); term != "" {
		base += ` WHERE (LOWER(s.full_name) LIKE $1 ESCAPE '\' OR LOWER(s.document_id) LIKE $1 ESCAPE '\' OR LOWER(s.career) LIKE $1 ESCAPE '\')`
		args = append(args, containsPattern(strings.ToLower(term)))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	// The service bounds PageSize; only an unset size needs a default here.
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.full_name ASC, s.id ASC LIMIT %d OFFSET %d", studentColumns, base, size, offset)
	students := make([]models.Student, 0, size)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern matches term literally anywhere in a LIKE ... ESCAPE '\' comparison.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students s WHERE s.id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByDocument checks whether the national ID is already registered.
func (r *StudentRepository) ExistsByDocument(ctx context.Context, documentID string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE document_id = $1 LIMIT 1", documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check document: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, full_name, document_id, career, photo_path, created_at, updated_at)
        VALUES (:id, :full_name, :document_id, :career, :photo_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdatePhoto stores the object path of the student's profile photo.
func (r *StudentRepository) UpdatePhoto(ctx context.Context, id, photoPath string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET photo_path = $2, updated_at = $3 WHERE id = $1`, id, photoPath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student photo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
