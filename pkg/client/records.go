package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/models"
)

// ErrUnsupportedTable is returned for writes the API does not expose.
var ErrUnsupportedTable = errors.New("unsupported table")

// Writable tables and the operations the API exposes for them.
var (
	insertPaths = map[string]string{
		"estudiantes": "/estudiantes",
		"expedientes": "/expedientes",
		"consultas":   "/consultas",
		"inventario":  "/inventario",
		"usuarios":    "/usuarios",
	}
	updatePaths = map[string]string{
		"inventario": "/inventario",
		"usuarios":   "/usuarios",
	}
	deletePaths = map[string]string{
		"inventario": "/inventario",
	}
)

// ListStudents fetches one page of the student search.
func (c *Client) ListStudents(ctx context.Context, query string, page, size int) (*dto.StudentPage, error) {
	params := url.Values{}
	if q := strings.TrimSpace(query); q != "" {
		params.Set("busqueda", q)
	}
	params.Set("pagina", strconv.Itoa(page))
	params.Set("filas", strconv.Itoa(size))

	var result dto.StudentPage
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath("/estudiantes"), params, nil, &result, true); err != nil {
		return nil, err
	}
	if result.Students == nil {
		result.Students = []models.Student{}
	}
	return &result, nil
}

// GetStudent fetches one student.
func (c *Client) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath("/estudiantes/"+url.PathEscape(id)), nil, nil, &student, true); err != nil {
		return nil, err
	}
	return &student, nil
}

// LatestClinicalRecords returns up to limit records of a student, newest first.
func (c *Client) LatestClinicalRecords(ctx context.Context, studentID string, limit int) ([]models.ClinicalRecord, error) {
	params := url.Values{"estudiante_id": {studentID}, "limit": {strconv.Itoa(limit)}}
	records := []models.ClinicalRecord{}
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath("/expedientes"), params, nil, &records, true); err != nil {
		return nil, err
	}
	return records, nil
}

// LatestClinicalRecordsFor returns the latest record of each student in one request.
func (c *Client) LatestClinicalRecordsFor(ctx context.Context, studentIDs []string) ([]models.ClinicalRecord, error) {
	records := []models.ClinicalRecord{}
	if len(studentIDs) == 0 {
		return records, nil
	}
	params := url.Values{"estudiante_ids": {strings.Join(studentIDs, ",")}}
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath("/expedientes/ultimos"), params, nil, &records, true); err != nil {
		return nil, err
	}
	return records, nil
}

// GetClinicalRecord fetches one record by id.
func (c *Client) GetClinicalRecord(ctx context.Context, id string) (*models.ClinicalRecord, error) {
	var record models.ClinicalRecord
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath("/expedientes/"+url.PathEscape(id)), nil, nil, &record, true); err != nil {
		return nil, err
	}
	return &record, nil
}

// DailyConsultations returns today's queue.
func (c *Client) DailyConsultations(ctx context.Context, filter models.ConsultationFilter) ([]models.Consultation, error) {
	params := url.Values{}
	if filter != "" {
		params.Set("filtro", string(filter))
	}
	consultations := []models.Consultation{}
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath("/consultas/dia"), params, nil, &consultations, true); err != nil {
		return nil, err
	}
	return consultations, nil
}

// AttendConsultation marks a consultation attended.
func (c *Client) AttendConsultation(ctx context.Context, id string) (*models.Consultation, error) {
	var consultation models.Consultation
	if err := c.doJSON(ctx, http.MethodPost, c.apiPath("/consultas/"+url.PathEscape(id)+"/atender"), nil, nil, &consultation, true); err != nil {
		return nil, err
	}
	return &consultation, nil
}

// MonthlyConsultations returns the consultations created inside window.
func (c *Client) MonthlyConsultations(ctx context.Context, window models.MonthlyWindow) ([]models.Consultation, error) {
	params := url.Values{"mes": {strconv.Itoa(window.Month)}, "anio": {strconv.Itoa(window.Year)}}
	var consultations []models.Consultation
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath("/reportes/consultas"), params, nil, &consultations, true); err != nil {
		return nil, err
	}
	if consultations == nil {
		return []models.Consultation{}, nil
	}
	return consultations, nil
}

// InventorySnapshot returns current stock, or stock as of asOf when set.
func (c *Client) InventorySnapshot(ctx context.Context, asOf *time.Time) ([]models.InventoryItem, error) {
	params := url.Values{}
	if asOf != nil {
		params.Set("hasta", asOf.UTC().Format(time.RFC3339))
	}
	var items []models.InventoryItem
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath("/reportes/inventario"), params, nil, &items, true); err != nil {
		return nil, err
	}
	if items == nil {
		return []models.InventoryItem{}, nil
	}
	return items, nil
}

// DispatchReport posts a PDF to the report mail function.
func (c *Client) DispatchReport(ctx context.Context, filename string, pdf []byte) (*models.ReportDispatchResult, error) {
	var result models.ReportDispatchResult
	if err := c.doMultipart(ctx, c.functions+"/enviarReporte", "pdf", filename, bytes.NewReader(pdf), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendReport posts a PDF to the report mail function.
func (c *Client) SendReport(ctx context.Context, filename string, pdf []byte) error {
	_, err := c.DispatchReport(ctx, filename, pdf)
	return err
}

// Insert creates a row and decodes the stored row into dest when non-nil.
func (c *Client) Insert(ctx context.Context, table string, row, dest interface{}) error {
	p, ok := insertPaths[table]
	if !ok {
		return fmt.Errorf("%w: insert into %q", ErrUnsupportedTable, table)
	}
	return c.doJSON(ctx, http.MethodPost, c.apiPath(p), nil, row, dest, true)
}

// Update patches a row by id and decodes the result into dest when non-nil.
func (c *Client) Update(ctx context.Context, table, id string, patch, dest interface{}) error {
	p, ok := updatePaths[table]
	if !ok {
		return fmt.Errorf("%w: update %q", ErrUnsupportedTable, table)
	}
	return c.doJSON(ctx, http.MethodPut, c.apiPath(p+"/"+url.PathEscape(id)), nil, patch, dest, true)
}

// Delete removes a row by id.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	p, ok := deletePaths[table]
	if !ok {
		return fmt.Errorf("%w: delete from %q", ErrUnsupportedTable, table)
	}
	return c.doJSON(ctx, http.MethodDelete, c.apiPath(p+"/"+url.PathEscape(id)), nil, nil, nil, true)
}

// Upload stores blob in bucket and returns where it landed.
func (c *Client) Upload(ctx context.Context, bucket, filename string, blob io.Reader) (*models.UploadResult, error) {
	var result models.UploadResult
	if err := c.doMultipart(ctx, c.apiPath("/uploads/"+url.PathEscape(bucket)), "file", filename, blob, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadStudentPhoto sets a student's profile photo.
func (c *Client) UploadStudentPhoto(ctx context.Context, studentID, filename string, photo io.Reader) (*models.Student, error) {
	var student models.Student
	if err := c.doMultipart(ctx, c.apiPath("/estudiantes/"+url.PathEscape(studentID)+"/foto"), "foto", filename, photo, &student); err != nil {
		return nil, err
	}
	return &student, nil
}
