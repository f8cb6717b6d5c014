package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type fakeConsultationRepo struct {
	items    map[string]models.Consultation
	from, to time.Time
	filter   models.ConsultationFilter
	raceLost bool
}

func (f *fakeConsultationRepo) ListBetween(_ context.Context, from, to time.Time, filter models.ConsultationFilter) ([]models.Consultation, error) {
	f.from, f.to, f.filter = from, to, filter
	return nil, nil
}

func (f *fakeConsultationRepo) FindByID(_ context.Context, id string) (*models.Consultation, error) {
	if c, ok := f.items[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeConsultationRepo) Create(_ context.Context, c *models.Consultation) error {
	c.ID = "c-new"
	if f.items == nil {
		f.items = map[string]models.Consultation{}
	}
	f.items[c.ID] = *c
	return nil
}

func (f *fakeConsultationRepo) MarkAttended(_ context.Context, id, _ string, at time.Time) (bool, error) {
	if f.raceLost {
		return false, nil
	}
	c := f.items[id]
	c.Status = models.StatusAttended
	c.AttendedAt = &at
	f.items[id] = c
	return true, nil
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, pattern string) {
	r.patterns = append(r.patterns, pattern)
}

func TestConsultationServiceDailyUsesLocalDay(t *testing.T) {
	loc := time.FixedZone("COT", -5*3600)
	repo := &fakeConsultationRepo{}
	svc := NewConsultationService(repo, &fakeStudentRepo{}, nil, nil, nil, nil, zap.NewNop(), loc)
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC) }

	list, err := svc.Daily(context.Background(), models.FilterPending)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, loc), repo.from)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, loc), repo.to)
	assert.Equal(t, models.FilterPending, repo.filter)
}

func TestConsultationServiceAttend(t *testing.T) {
	repo := &fakeConsultationRepo{items: map[string]models.Consultation{
		"p": {ID: "p", Status: models.StatusPending},
		"a": {ID: "a", Status: models.StatusAttended},
	}}
	cache := &recordingInvalidator{}
	pub := &recordingPublisher{}
	svc := NewConsultationService(repo, &fakeStudentRepo{}, cache, &memoryAudit{}, pub, nil, zap.NewNop(), time.UTC)

	got, err := svc.Attend(context.Background(), "p", AuditMeta{UserID: "nurse"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAttended, got.Status)
	require.NotNil(t, got.AttendedBy)
	assert.Equal(t, []string{"reportes:consultas:*"}, cache.patterns)
	assert.Len(t, pub.events, 1)

	_, err = svc.Attend(context.Background(), "a", AuditMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Attend(context.Background(), "missing", AuditMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestConsultationServiceAttendRace(t *testing.T) {
	repo := &fakeConsultationRepo{raceLost: true, items: map[string]models.Consultation{"p": {ID: "p", Status: models.StatusPending}}}
	svc := NewConsultationService(repo, &fakeStudentRepo{}, nil, nil, nil, nil, zap.NewNop(), time.UTC)

	_, err := svc.Attend(context.Background(), "p", AuditMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestConsultationServiceCreate(t *testing.T) {
	const studentID = "0b7f6c1e-8d7a-4c61-9a57-1d3f1c2b9e10"
	repo := &fakeConsultationRepo{}
	students := &fakeStudentRepo{students: map[string]models.Student{studentID: {ID: studentID, FullName: "Ana"}}}
	cache := &recordingInvalidator{}
	svc := NewConsultationService(repo, students, cache, nil, &recordingPublisher{}, nil, zap.NewNop(), time.UTC)

	c, err := svc.Create(context.Background(), models.CreateConsultationRequest{StudentID: studentID, Reason: "Fiebre", Priority: models.PriorityUrgent}, AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, c.Status)
	assert.Equal(t, "Ana", c.StudentName)
	assert.Len(t, cache.patterns, 1)

	_, err = svc.Create(context.Background(), models.CreateConsultationRequest{StudentID: studentID, Reason: "Fiebre", Priority: "alta"}, AuditMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestConsultationServiceCreateRecordsAudit(t *testing.T) {
	const studentID = "0b7f6c1e-8d7a-4c61-9a57-1d3f1c2b9e10"
	students := &fakeStudentRepo{students: map[string]models.Student{studentID: {ID: studentID, FullName: "Ana"}}}
	audit := &memoryAudit{}
	svc := NewConsultationService(&fakeConsultationRepo{}, students, nil, audit, nil, nil, zap.NewNop(), time.UTC)

	meta := AuditMeta{UserID: "recepcion-1", IPAddress: "10.0.0.7", UserAgent: "dashboard"}
	_, err := svc.Create(context.Background(), models.CreateConsultationRequest{StudentID: studentID, Reason: "Mareo", Priority: models.PriorityNormal}, meta)
	require.NoError(t, err)

	require.Len(t, audit.logs, 1)
	entry := audit.logs[0]
	assert.Equal(t, models.AuditActionConsultCreate, entry.Action)
	assert.Equal(t, "consultation", entry.Resource)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "c-new", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "recepcion-1", *entry.UserID)
	assert.Equal(t, "10.0.0.7", entry.IPAddress)
	assert.JSONEq(t, `{"student_id":"`+studentID+`","priority":"normal"}`, string(entry.NewValues))

	_, err = svc.Create(context.Background(), models.CreateConsultationRequest{StudentID: studentID, Reason: "Mareo", Priority: "alta"}, meta)
	assert.Error(t, err)
	assert.Len(t, audit.logs, 1, "rejected consultations are not audited")
}
