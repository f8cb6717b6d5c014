package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

var clinicalRecordRowColumns = []string{"id", "student_id", "reason", "history", "diagnosis", "treatment", "notes", "created_by", "created_at"}

func TestClinicalRecordRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClinicalRecordRepository(db)

	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM clinical_records WHERE student_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(clinicalRecordRowColumns).AddRow("r1", "s1", "Cefalea", "", "Migraña", "Reposo", "", nil, created))

	records, err := repo.ListByStudent(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Migraña", records[0].Diagnosis)
	assert.Equal(t, created, records[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicalRecordRepositoryLatestForStudents(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClinicalRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (student_id)")).
		WithArgs(pq.Array([]string{"s1", "s2"})).
		WillReturnRows(sqlmock.NewRows(clinicalRecordRowColumns).AddRow("r9", "s1", "", "", "", "", "", nil, time.Now()))

	records, err := repo.LatestForStudents(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r9", records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicalRecordRepositoryLatestForNoStudents(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	records, err := NewClinicalRecordRepository(db).LatestForStudents(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicalRecordRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM clinical_records WHERE id = \\$1").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err := NewClinicalRecordRepository(db).FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestClinicalRecordRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO clinical_records").
		WithArgs(sqlmock.AnyArg(), "s1", "Fiebre", "", "", "", "", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.ClinicalRecord{StudentID: "s1", Reason: "Fiebre"}
	require.NoError(t, NewClinicalRecordRepository(db).Create(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
