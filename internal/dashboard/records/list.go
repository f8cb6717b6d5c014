// Package records drives the paginated student list and the record detail view.
package records

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/enfermeria-api/internal/dto"
	"github.com/noah-isme/enfermeria-api/internal/models"
)

// DefaultPageSize matches the dashboard table.
const DefaultPageSize = 10

// Source serves student pages and clinical records.
type Source interface {
	ListStudents(ctx context.Context, query string, page, size int) (*dto.StudentPage, error)
	LatestClinicalRecords(ctx context.Context, studentID string, limit int) ([]models.ClinicalRecord, error)
	GetClinicalRecord(ctx context.Context, id string) (*models.ClinicalRecord, error)
}

// BatchSource resolves the latest record of many students in one call.
type BatchSource interface {
	LatestClinicalRecordsFor(ctx context.Context, studentIDs []string) ([]models.ClinicalRecord, error)
}

// State is the lifecycle of the list view.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "idle"
	}
}

// Row is one student annotated with the date of their last visit.
type Row struct {
	Student      models.Student
	LastVisitAt  *time.Time
	LastRecordID *string
}

// View is what the table renders.
type View struct {
	Query      string
	Page       int
	PageSize   int
	TotalPages int
	Total      int
	Rows       []Row
	State      State
}

// Options configures a ListController.
type Options struct {
	PageSize int
	// BatchLatest replaces the per-row latest-record lookups with one batched call
	// when the source supports it.
	BatchLatest bool
	// Concurrency caps parallel per-row lookups.
	Concurrency int
	// OnView observes every applied view.
	OnView func(View)
	Logger *zap.Logger
}

// ListController holds the query and page of the student table and reloads it.
type ListController struct {
	source Source
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	view   View
}

// NewListController constructs an idle controller on page 1 with an empty query.
func NewListController(source Source, opts Options) *ListController {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListController{
		source: source,
		opts:   opts,
		logger: logger,
		view:   View{Page: 1, PageSize: opts.PageSize, Rows: []Row{}},
	}
}

// View returns a copy of the current view.
func (l *ListController) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Load reloads the current query and page.
func (l *ListController) Load(ctx context.Context) View {
	l.mu.Lock()
	query, page := l.view.Query, l.view.Page
	l.mu.Unlock()
	return l.load(ctx, query, page)
}

// SetQuery commits a new search. The page always resets to 1.
func (l *ListController) SetQuery(ctx context.Context, query string) View {
	return l.load(ctx, query, 1)
}

// SetPage moves to page. Pages outside 1..TotalPages leave the view untouched.
func (l *ListController) SetPage(ctx context.Context, page int) View {
	l.mu.Lock()
	if page < 1 || page > maxInt(1, l.view.TotalPages) {
		view := l.snapshot()
		l.mu.Unlock()
		return view
	}
	query := l.view.Query
	l.mu.Unlock()
	return l.load(ctx, query, page)
}

// Next advances one page; a no-op on the last page.
func (l *ListController) Next(ctx context.Context) View {
	return l.SetPage(ctx, l.View().Page+1)
}

// Prev goes back one page; a no-op on page 1.
func (l *ListController) Prev(ctx context.Context) View {
	return l.SetPage(ctx, l.View().Page-1)
}

// Close cancels an in-flight load.
func (l *ListController) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *ListController) load(parent context.Context, query string, page int) View {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.view.Query = query
	l.view.Page = page
	l.view.State = StateLoading
	l.mu.Unlock()
	defer cancel()

	result, err := l.fetch(ctx, query, page)

	l.mu.Lock()
	if seq != l.seq {
		// A newer load owns the view.
		view := l.snapshot()
		l.mu.Unlock()
		l.logger.Debug("discarding stale student page", zap.Uint64("seq", seq), zap.String("query", query), zap.Int("page", page))
		return view
	}
	if err != nil {
		// Keep the last known bounds so paging still works once the source recovers.
		result.TotalPages = l.view.TotalPages
		result.Total = l.view.Total
		result.Page = clampPage(page, result.TotalPages)
	}
	l.view = result
	l.cancel = nil
	view := l.snapshot()
	l.mu.Unlock()

	if l.opts.OnView != nil {
		l.opts.OnView(view)
	}
	return view
}

// fetch returns an empty loaded view alongside the error when the page cannot be read.
func (l *ListController) fetch(ctx context.Context, query string, page int) (View, error) {
	view := View{Query: query, Page: page, PageSize: l.opts.PageSize, Rows: []Row{}, State: StateLoaded}

	result, err := l.source.ListStudents(ctx, query, page, l.opts.PageSize)
	if err == nil && result != nil && result.TotalPages > 0 && page > result.TotalPages {
		// The result set shrank under us; show the last page that exists.
		page = result.TotalPages
		view.Page = page
		result, err = l.source.ListStudents(ctx, query, page, l.opts.PageSize)
	}
	if err != nil {
		l.logger.Warn("student page fetch failed", zap.String("query", query), zap.Int("page", page), zap.Error(err))
		return view, err
	}
	if result == nil {
		return view, nil
	}

	view.TotalPages = result.TotalPages
	view.Total = result.Total
	view.Page = clampPage(view.Page, view.TotalPages)
	view.Rows = make([]Row, len(result.Students))
	for i, student := range result.Students {
		view.Rows[i] = Row{Student: student}
	}
	l.annotate(ctx, view.Rows)
	return view, nil
}

// annotate fills LastVisitAt for every row and returns only after all lookups settled.
func (l *ListController) annotate(ctx context.Context, rows []Row) {
	if len(rows) == 0 {
		return
	}
	if batch, ok := l.source.(BatchSource); ok && l.opts.BatchLatest {
		l.annotateBatch(ctx, batch, rows)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i := range rows {
		i := i
		g.Go(func() error {
			records, err := l.source.LatestClinicalRecords(gctx, rows[i].Student.ID, 1)
			if err != nil {
				l.logger.Warn("latest clinical record fetch failed", zap.String("student_id", rows[i].Student.ID), zap.Error(err))
				return nil
			}
			if len(records) > 0 {
				setLatest(&rows[i], records[0])
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (l *ListController) annotateBatch(ctx context.Context, batch BatchSource, rows []Row) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.Student.ID
	}
	records, err := batch.LatestClinicalRecordsFor(ctx, ids)
	if err != nil {
		l.logger.Warn("batched clinical record fetch failed", zap.Int("students", len(ids)), zap.Error(err))
		return
	}
	latest := make(map[string]models.ClinicalRecord, len(records))
	for _, record := range records {
		if current, ok := latest[record.StudentID]; !ok || record.CreatedAt.After(current.CreatedAt) {
			latest[record.StudentID] = record
		}
	}
	for i := range rows {
		if record, ok := latest[rows[i].Student.ID]; ok {
			setLatest(&rows[i], record)
		}
	}
}

func setLatest(row *Row, record models.ClinicalRecord) {
	at := record.CreatedAt
	id := record.ID
	row.LastVisitAt = &at
	row.LastRecordID = &id
}

// snapshot must be called with l.mu held.
func (l *ListController) snapshot() View {
	view := l.view
	view.Rows = append([]Row(nil), l.view.Rows...)
	return view
}

// clampPage bounds page to 1..max(1, totalPages).
func clampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if last := maxInt(1, totalPages); page > last {
		return last
	}
	return page
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
