// Command records-browser is a terminal view of the student records table.
//
// Plain text is a debounced search. Commands start with ':'
//
//	:buscar <texto>   search immediately
//	:n / :p           next / previous page
//	:pag <n>          jump to page n
//	:ver <fila>       show the clinical sheet of a row
//	:pdf <fila> <f>   print the sheet of a row to a PDF file
//	:q                quit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/dashboard/records"
	"github.com/noah-isme/enfermeria-api/internal/dashboard/search"
	"github.com/noah-isme/enfermeria-api/internal/realtime"
	"github.com/noah-isme/enfermeria-api/pkg/client"
	"github.com/noah-isme/enfermeria-api/pkg/config"
	"github.com/noah-isme/enfermeria-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		baseURL string
		live    bool
	)
	flag.StringVar(&baseURL, "base-url", cfg.Client.BaseURL, "API base URL")
	flag.BoolVar(&live, "live", cfg.Realtime.Enabled, "Reload the page when students change")
	flag.Parse()

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api, err := client.New(client.Config{BaseURL: baseURL, Timeout: cfg.Client.Timeout, Logger: logr})
	if err != nil {
		log.Fatalf("failed to build client: %v", err)
	}
	if _, err := api.Login(ctx, cfg.Client.Email, cfg.Client.Password); err != nil {
		log.Fatalf("login failed: %v", err)
	}
	defer api.Logout(context.Background()) //nolint:errcheck

	b := newBrowser(ctx, api, os.Stdout, cfg.Records, logr)
	defer b.close()

	if live {
		if _, err := api.Subscribe(ctx, realtime.TopicStudents, func(realtime.Event) {
			b.list.Load(ctx)
		}); err != nil {
			logr.Warn("realtime unavailable", zap.Error(err))
		}
		defer api.UnsubscribeAll()
	}

	b.list.Load(ctx)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if !b.handle(scanner.Text()) {
			return
		}
	}
}

type browser struct {
	ctx      context.Context
	list     *records.ListController
	detail   *records.DetailLoader
	debounce *search.Debouncer

	outMu sync.Mutex
	out   io.Writer
}

func newBrowser(ctx context.Context, api *client.Client, out io.Writer, cfg config.RecordsConfig, logr *zap.Logger) *browser {
	b := &browser{ctx: ctx, out: out, detail: records.NewDetailLoader(api, logr)}
	b.list = records.NewListController(api, records.Options{
		PageSize:    cfg.DefaultPageSize,
		BatchLatest: cfg.BatchLatest,
		OnView:      b.render,
		Logger:      logr,
	})
	b.debounce = search.NewDebouncer(cfg.SearchDebounce, func(query string) {
		b.list.SetQuery(ctx, query)
	})
	return b
}

func (b *browser) close() {
	b.debounce.Stop()
	b.list.Close()
}

// handle runs one input line and reports whether to keep reading.
func (b *browser) handle(line string) bool {
	if !strings.HasPrefix(line, ":") {
		b.debounce.Input(line)
		return true
	}
	fields := strings.Fields(strings.TrimPrefix(line, ":"))
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "q":
		return false
	case "buscar":
		b.debounce.SearchNow(strings.Join(fields[1:], " "))
	case "n":
		b.list.Next(b.ctx)
	case "p":
		b.list.Prev(b.ctx)
	case "pag":
		if page, ok := intArg(fields, 1); ok {
			b.list.SetPage(b.ctx, page)
		}
	case "ver":
		if view, ok := b.openRow(fields); ok {
			b.printf("%s\n", strings.Join(view.PrintLines(), "\n"))
		}
	case "pdf":
		view, ok := b.openRow(fields)
		if !ok || len(fields) < 3 {
			b.printf("uso: :pdf <fila> <archivo>\n")
			return true
		}
		doc, err := view.PrintPDF()
		if err == nil {
			err = os.WriteFile(fields[2], doc, 0o644)
		}
		if err != nil {
			b.printf("error: %v\n", err)
			return true
		}
		b.printf("guardado %s\n", fields[2])
	default:
		b.printf("comando desconocido: %s\n", fields[0])
	}
	return true
}

func (b *browser) openRow(fields []string) (records.DetailView, bool) {
	n, ok := intArg(fields, 1)
	rows := b.list.View().Rows
	if !ok || n < 1 || n > len(rows) {
		b.printf("fila inválida\n")
		return records.DetailView{}, false
	}
	return b.detail.OpenRow(b.ctx, rows[n-1]), true
}

func (b *browser) render(v records.View) {
	if v.State != records.StateLoaded {
		return
	}
	b.outMu.Lock()
	defer b.outMu.Unlock()
	fmt.Fprintf(b.out, "\nBúsqueda %q  página %d/%d  (%d estudiantes)\n", v.Query, v.Page, max(1, v.TotalPages), v.Total)
	if len(v.Rows) == 0 {
		fmt.Fprintln(b.out, "  sin resultados")
		return
	}
	for i, row := range v.Rows {
		last := records.Placeholder
		if row.LastVisitAt != nil {
			last = row.LastVisitAt.Local().Format(time.DateOnly)
		}
		fmt.Fprintf(b.out, "%3d  %-32s %-14s %-20s %s\n", i+1, row.Student.FullName, row.Student.DocumentID, row.Student.Career, last)
	}
}

func (b *browser) printf(format string, args ...interface{}) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	fmt.Fprintf(b.out, format, args...)
}

func intArg(fields []string, i int) (int, bool) {
	if len(fields) <= i {
		return 0, false
	}
	n, err := strconv.Atoi(fields[i])
	return n, err == nil
}
