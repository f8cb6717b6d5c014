package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/enfermeria-api/api/swagger"
	"github.com/noah-isme/enfermeria-api/internal/dashboard/reports"
	"github.com/noah-isme/enfermeria-api/internal/handler"
	"github.com/noah-isme/enfermeria-api/internal/realtime"
	"github.com/noah-isme/enfermeria-api/internal/repository"
	"github.com/noah-isme/enfermeria-api/internal/server"
	"github.com/noah-isme/enfermeria-api/internal/service"
	"github.com/noah-isme/enfermeria-api/pkg/cache"
	"github.com/noah-isme/enfermeria-api/pkg/config"
	"github.com/noah-isme/enfermeria-api/pkg/database"
	"github.com/noah-isme/enfermeria-api/pkg/export"
	"github.com/noah-isme/enfermeria-api/pkg/logger"
	"github.com/noah-isme/enfermeria-api/pkg/mail"
	"github.com/noah-isme/enfermeria-api/pkg/storage"
)

// @title Enfermeria API
// @version 1.0.0
// @description Infirmary dashboard backend: students, clinical records, consultations, inventory and monthly reports.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	recordRepo := repository.NewClinicalRecordRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, redisClient != nil)

	var events service.EventPublisher
	var hub *realtime.Hub
	if cfg.Realtime.Enabled {
		hub = realtime.NewHub(realtime.Options{
			SendBuffer:    cfg.Realtime.SendBuffer,
			PingInterval:  cfg.Realtime.PingInterval,
			OnClientCount: metricsSvc.RealtimeClientConnected,
			Logger:        logr,
		})
		events = hub
	}

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	if cfg.JWT.AdminEmail != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.JWT.AdminEmail, cfg.JWT.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	uploadSvc := service.NewUploadService(store, signer, metricsSvc, logr, service.UploadConfig{
		APIPrefix:    cfg.APIPrefix,
		MaxBytes:     cfg.Storage.MaxFileSizeBytes,
		AllowedTypes: cfg.Storage.AllowedMIMEs,
	})
	studentSvc := service.NewStudentService(studentRepo, uploadSvc, auditRepo, events, validate, logr, service.StudentServiceConfig{
		DefaultPageSize: cfg.Records.DefaultPageSize,
		MaxPageSize:     cfg.Records.MaxPageSize,
	})
	recordSvc := service.NewClinicalRecordService(recordRepo, studentRepo, auditRepo, events, validate, logr)
	consultationSvc := service.NewConsultationService(consultationRepo, studentRepo, cacheSvc, auditRepo, events, validate, logr, loc)
	inventorySvc := service.NewInventoryService(inventoryRepo, auditRepo, events, validate, logr)
	userSvc := service.NewUserService(userRepo, auditRepo, validate, logr)

	exporter := service.NewExportService(export.NewCSVExporter(','), export.NewPDFExporter())
	reportSvc := service.NewReportService(consultationRepo, inventoryRepo, cacheSvc, exporter, cfg.Reports.CacheTTL, logr)
	mailSvc := service.NewReportMailService(mail.NewMailer(cfg.Mail), auditRepo, metricsSvc, cfg.Reports.MaxUploadBytes, logr)

	aggregator := reports.NewAggregator(reportSvc, cfg.Reports.InventorySnapshot, logr)
	pipeline := reports.NewPipeline(aggregator, nil, mailSvc, logr)
	monthlySvc := service.NewMonthlyReportService(pipeline, validate, logr)
	queue := monthlySvc.NewQueue(cfg.Reports.WorkerConcurrency)
	queue.Start(ctx)
	defer queue.Stop()
	if cfg.Reports.ScheduleEnabled {
		monthlySvc.StartSchedule(ctx, time.Hour)
	}

	handlers := server.Handlers{
		Auth:            handler.NewAuthHandler(authSvc),
		Students:        handler.NewStudentHandler(studentSvc),
		ClinicalRecords: handler.NewClinicalRecordHandler(recordSvc),
		Consultations:   handler.NewConsultationHandler(consultationSvc),
		Inventory:       handler.NewInventoryHandler(inventorySvc),
		Reports:         handler.NewReportHandler(reportSvc, monthlySvc),
		ReportFunction:  handler.NewReportFunctionHandler(mailSvc),
		Uploads:         handler.NewUploadHandler(uploadSvc),
		Users:           handler.NewUserHandler(userSvc),
		Metrics:         handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient)),
	}
	if hub != nil {
		handlers.Realtime = handler.NewRealtimeHandler(hub, cfg.CORS.AllowedOrigins, logr)
	}

	router := server.NewRouter(server.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Tokens:         authSvc,
		Audit:          auditRepo,
		Metrics:        metricsSvc,
		Logger:         logr,
	}, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Driver == config.StorageDriverB2 {
		return storage.NewB2Storage(ctx, cfg.B2AccountID, cfg.B2AppKey, cfg.B2Bucket)
	}
	return storage.NewLocalStorage(cfg.LocalDir)
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
