// Command monthly-report builds a month's infirmary report through the API and
// mails it via the report function. With -output it writes the PDF locally
// instead of sending it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/dashboard/reports"
	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/pkg/client"
	"github.com/noah-isme/enfermeria-api/pkg/config"
	"github.com/noah-isme/enfermeria-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	prev := time.Now().UTC().AddDate(0, -1, 0)
	var (
		month    int
		year     int
		output   string
		baseURL  string
		snapshot string
		timeout  time.Duration
	)
	flag.IntVar(&month, "mes", int(prev.Month()), "Month to report (1-12)")
	flag.IntVar(&year, "anio", prev.Year(), "Year to report")
	flag.StringVar(&output, "output", "", "Write the PDF to this path instead of sending it")
	flag.StringVar(&baseURL, "base-url", cfg.Client.BaseURL, "API base URL")
	flag.StringVar(&snapshot, "inventario", cfg.Reports.InventorySnapshot, "Inventory snapshot mode: current or windowed")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline")
	flag.Parse()

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	window, err := models.NewMonthlyWindow(month, year)
	if err != nil {
		log.Fatalf("invalid period: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	api, err := client.New(client.Config{
		BaseURL: baseURL,
		Timeout: cfg.Client.Timeout,
		Logger:  logr,
	})
	if err != nil {
		log.Fatalf("failed to build client: %v", err)
	}
	if _, err := api.Login(ctx, cfg.Client.Email, cfg.Client.Password); err != nil {
		log.Fatalf("login failed: %v", err)
	}
	defer func() {
		if err := api.Logout(context.Background()); err != nil {
			logr.Warn("logout failed", zap.Error(err))
		}
	}()

	pipeline := reports.NewPipeline(reports.NewAggregator(api, snapshot, logr), nil, api, logr)

	if output != "" {
		doc, data, err := pipeline.Build(ctx, window)
		if err != nil {
			log.Fatalf("build report: %v", err)
		}
		if err := os.WriteFile(output, doc, 0o644); err != nil {
			log.Fatalf("write %s: %v", output, err)
		}
		fmt.Printf("Wrote %s (%d bytes, %d consultations, %d items)\n", output, len(doc), len(data.Consultations), len(data.Inventory))
		return
	}

	result, err := pipeline.GenerateAndSend(ctx, window)
	if err != nil {
		log.Fatalf("send report: %v", err)
	}
	fmt.Printf("Sent %s (%d bytes, checksum %s)\n", result.Filename, result.Size, result.Checksum)
}
