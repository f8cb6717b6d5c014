package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/realtime"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type publishedEvent struct {
	Type  string
	Table string
	ID    string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, table, recordID string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Table: table, ID: recordID})
	return nil
}

type memoryAudit struct {
	logs []models.AuditLog
}

func (m *memoryAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

type fakeStudentRepo struct {
	students   map[string]models.Student
	documents  map[string]bool
	lastFilter models.StudentFilter
	listTotal  int
	err        error
}

func (f *fakeStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, 0, f.err
	}
	out := make([]models.Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, s)
	}
	return out, f.listTotal, nil
}

func (f *fakeStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) ExistsByDocument(_ context.Context, documentID string) (bool, error) {
	return f.documents[documentID], nil
}

func (f *fakeStudentRepo) Create(_ context.Context, student *models.Student) error {
	if f.students == nil {
		f.students = map[string]models.Student{}
	}
	student.ID = "stu-new"
	f.students[student.ID] = *student
	return nil
}

func (f *fakeStudentRepo) UpdatePhoto(_ context.Context, id, photoPath string) error {
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.PhotoPath = &photoPath
	f.students[id] = s
	return nil
}

type fakeUploader struct {
	bucket string
	body   string
}

func (f *fakeUploader) Upload(_ context.Context, bucket, filename string, r io.Reader) (*models.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.bucket = bucket
	f.body = string(data)
	return &models.UploadResult{Path: bucket + "/" + filename, Size: int64(len(data))}, nil
}

func newTestStudentService(repo *fakeStudentRepo) (*StudentService, *recordingPublisher, *memoryAudit, *fakeUploader) {
	pub := &recordingPublisher{}
	audit := &memoryAudit{}
	up := &fakeUploader{}
	svc := NewStudentService(repo, up, audit, pub, nil, zap.NewNop(), StudentServiceConfig{DefaultPageSize: 10, MaxPageSize: 50})
	return svc, pub, audit, up
}

func TestStudentServiceListComputesTotalPages(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]models.Student{"1": {ID: "1"}}, listTotal: 21}
	svc, _, _, _ := newTestStudentService(repo)

	page, err := svc.List(context.Background(), models.StudentFilter{Search: "ana", Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lastFilter.Page)
	assert.Equal(t, 50, repo.lastFilter.PageSize)
	assert.Equal(t, 1, page.TotalPages)

	page, err = svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, 3, page.TotalPages)
}

func TestStudentServiceListWrapsRepositoryError(t *testing.T) {
	svc, _, _, _ := newTestStudentService(&fakeStudentRepo{err: errors.New("db down")})
	_, err := svc.List(context.Background(), models.StudentFilter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc, _, _, _ := newTestStudentService(&fakeStudentRepo{})
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &fakeStudentRepo{documents: map[string]bool{"DOC12345": true}}
	svc, pub, audit, _ := newTestStudentService(repo)

	_, err := svc.Create(context.Background(), models.CreateStudentRequest{FullName: "Ana Ruiz", DocumentID: "DOC12345", Career: "Enfermeria"}, AuditMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(context.Background(), models.CreateStudentRequest{FullName: "A"}, AuditMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	student, err := svc.Create(context.Background(), models.CreateStudentRequest{FullName: "Ana Ruiz", DocumentID: "DOC99999", Career: "Enfermeria"}, AuditMeta{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "stu-new", student.ID)
	require.Len(t, pub.events, 1)
	assert.Equal(t, publishedEvent{Type: realtime.EventInsert, Table: realtime.TopicStudents, ID: "stu-new"}, pub.events[0])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStudentCreate, audit.logs[0].Action)
}

func TestStudentServiceUploadPhoto(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]models.Student{"s1": {ID: "s1", FullName: "Ana"}}}
	svc, pub, _, up := newTestStudentService(repo)

	student, err := svc.UploadPhoto(context.Background(), "s1", "ana.png", strings.NewReader("png"))
	require.NoError(t, err)
	require.NotNil(t, student.PhotoPath)
	assert.Equal(t, "fotos/ana.png", *student.PhotoPath)
	assert.Equal(t, PhotoBucket, up.bucket)
	assert.Equal(t, "png", up.body)
	assert.Len(t, pub.events, 1)

	_, err = svc.UploadPhoto(context.Background(), "missing", "x.png", strings.NewReader("png"))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
