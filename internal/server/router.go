// Package server assembles the HTTP router.
package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/handler"
	"github.com/noah-isme/enfermeria-api/internal/middleware"
	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	"github.com/noah-isme/enfermeria-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/enfermeria-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enfermeria-api/pkg/middleware/requestid"
)

// FunctionsPath hosts the report mail function, outside the API prefix.
const FunctionsPath = "/.netlify/functions"

// Handlers groups every HTTP handler. A nil Realtime disables the websocket route.
type Handlers struct {
	Auth            *handler.AuthHandler
	Students        *handler.StudentHandler
	ClinicalRecords *handler.ClinicalRecordHandler
	Consultations   *handler.ConsultationHandler
	Inventory       *handler.InventoryHandler
	Reports         *handler.ReportHandler
	ReportFunction  *handler.ReportFunctionHandler
	Uploads         *handler.UploadHandler
	Realtime        *handler.RealtimeHandler
	Users           *handler.UserHandler
	Metrics         *handler.MetricsHandler
}

// Options configures cross-cutting middleware.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
	Metrics        *service.MetricsService
	Logger         *zap.Logger
}

var (
	allStaff  = []models.UserRole{models.RoleAdmin, models.RoleNurse, models.RoleReception}
	clinical  = []models.UserRole{models.RoleAdmin, models.RoleNurse}
	adminOnly = []models.UserRole{models.RoleAdmin}
)

// NewRouter wires middleware and routes.
func NewRouter(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(opts.Tokens)
	staff := middleware.RequireRoles(allStaff...)
	nurses := middleware.RequireRoles(clinical...)
	admins := middleware.RequireRoles(adminOnly...)

	// Signed tokens authorize downloads on their own.
	api := r.Group(opts.APIPrefix)
	api.GET("/archivos/:token", h.Uploads.Download)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", auth, h.Auth.Logout)
	authGroup.POST("/change-password", auth, h.Auth.ChangePassword)

	if h.Realtime != nil {
		api.GET("/realtime", middleware.JWTOrQuery(opts.Tokens), staff, h.Realtime.Connect)
	}

	protected := api.Group("", auth)

	students := protected.Group("/estudiantes", staff)
	students.GET("", h.Students.List)
	students.GET("/:id", h.Students.Get)
	students.POST("", h.Students.Create)
	students.POST("/:id/foto", h.Students.UploadPhoto)

	records := protected.Group("/expedientes", nurses)
	records.GET("", h.ClinicalRecords.List)
	records.GET("/ultimos", h.ClinicalRecords.Latest)
	records.GET("/:id", h.ClinicalRecords.Get)
	records.POST("", h.ClinicalRecords.Create)

	consultations := protected.Group("/consultas", staff)
	consultations.GET("/dia", h.Consultations.Daily)
	consultations.POST("", h.Consultations.Create)
	consultations.POST("/:id/atender", nurses, h.Consultations.Attend)

	reports := protected.Group("/reportes", nurses, middleware.WithResponseMeta())
	reports.GET("/consultas", middleware.Audit(opts.Audit, models.AuditActionReportExport, "reportes.consultas"), h.Reports.Consultations)
	reports.GET("/inventario", middleware.Audit(opts.Audit, models.AuditActionReportExport, "reportes.inventario"), h.Reports.Inventory)
	reports.GET("/mensual", h.Reports.MonthlyJobs)
	reports.POST("/mensual", h.Reports.EnqueueMonthly)
	reports.GET("/mensual/:id", h.Reports.MonthlyStatus)

	inventory := protected.Group("/inventario", nurses)
	inventory.GET("", h.Inventory.List)
	inventory.GET("/:id", h.Inventory.Get)
	inventory.POST("", h.Inventory.Create)
	inventory.PUT("/:id", h.Inventory.Update)
	inventory.DELETE("/:id", h.Inventory.Delete)

	protected.POST("/uploads/:bucket", staff, h.Uploads.Upload)
	protected.GET("/metrics/resumen", admins, h.Metrics.Snapshot)

	users := protected.Group("/usuarios", admins)
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.PUT("/:id", h.Users.Update)

	functions := r.Group(FunctionsPath, auth, nurses)
	functions.POST("/enviarReporte", h.ReportFunction.Send)

	return r
}
