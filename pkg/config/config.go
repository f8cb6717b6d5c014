package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Inventory snapshot modes used by the monthly report.
const (
	InventorySnapshotCurrent  = "current"
	InventorySnapshotWindowed = "windowed"
)

// Storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverB2    = "b2"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	// Timezone bounds "today" for the consultation queue.
	Timezone string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	Mail     MailConfig
	Reports  ReportsConfig
	Records  RecordsConfig
	Realtime RealtimeConfig
	Client   ClientConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
	SingleSession     bool
	// Bootstrap account created at boot when no user with that email exists.
	AdminEmail    string
	AdminPassword string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects the blob backend used for uploads.
type StorageConfig struct {
	Driver           string
	LocalDir         string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	B2AccountID      string
	B2AppKey         string
	B2Bucket         string
}

// MailConfig configures the SMTP relay behind the report mail function.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
	Subject    string
	Timeout    time.Duration
}

// ReportsConfig configures monthly reporting.
type ReportsConfig struct {
	CacheTTL          time.Duration
	InventorySnapshot string
	MaxUploadBytes    int64
	WorkerConcurrency int
	ScheduleEnabled   bool
}

// RecordsConfig tunes the student records browser.
type RecordsConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	SearchDebounce  time.Duration
	BatchLatest     bool
}

// RealtimeConfig tunes the websocket hub.
type RealtimeConfig struct {
	Enabled      bool
	SendBuffer   int
	PingInterval time.Duration
}

// ClientConfig configures the dashboard-side API client.
type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Email    string
	Password string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("APP_TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 8*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
		SingleSession:     v.GetBool("AUTH_SINGLE_SESSION"),
		AdminEmail:        v.GetString("ADMIN_EMAIL"),
		AdminPassword:     v.GetString("ADMIN_PASSWORD"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Driver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:         v.GetString("STORAGE_LOCAL_DIR"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
		B2AccountID:      v.GetString("B2_ACCOUNT_ID"),
		B2AppKey:         v.GetString("B2_APP_KEY"),
		B2Bucket:         v.GetString("B2_BUCKET"),
	}

	cfg.Mail = MailConfig{
		Host:       v.GetString("MAIL_HOST"),
		Port:       v.GetInt("MAIL_PORT"),
		Username:   v.GetString("MAIL_USERNAME"),
		Password:   v.GetString("MAIL_PASSWORD"),
		From:       v.GetString("MAIL_FROM"),
		Recipients: splitAndTrim(v.GetString("MAIL_REPORT_RECIPIENTS")),
		Subject:    v.GetString("MAIL_REPORT_SUBJECT"),
		Timeout:    parseDuration(v.GetString("MAIL_TIMEOUT"), 15*time.Second),
	}

	maxUpload := v.GetInt64("REPORTS_MAX_UPLOAD_SIZE")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	snapshot := strings.ToLower(v.GetString("REPORTS_INVENTORY_SNAPSHOT"))
	if snapshot != InventorySnapshotWindowed {
		snapshot = InventorySnapshotCurrent
	}
	cfg.Reports = ReportsConfig{
		CacheTTL:          parseDuration(v.GetString("REPORTS_CACHE_TTL"), 10*time.Minute),
		InventorySnapshot: snapshot,
		MaxUploadBytes:    maxUpload,
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		ScheduleEnabled:   v.GetBool("ENABLE_SCHEDULED_REPORTS"),
	}

	cfg.Records = RecordsConfig{
		DefaultPageSize: v.GetInt("RECORDS_PAGE_SIZE"),
		MaxPageSize:     v.GetInt("RECORDS_MAX_PAGE_SIZE"),
		SearchDebounce:  parseDuration(v.GetString("RECORDS_SEARCH_DEBOUNCE"), 300*time.Millisecond),
		BatchLatest:     v.GetBool("RECORDS_BATCH_LATEST"),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled:      v.GetBool("ENABLE_REALTIME"),
		SendBuffer:   v.GetInt("REALTIME_SEND_BUFFER"),
		PingInterval: parseDuration(v.GetString("REALTIME_PING_INTERVAL"), 30*time.Second),
	}

	cfg.Client = ClientConfig{
		BaseURL:  v.GetString("CLIENT_BASE_URL"),
		Timeout:  parseDuration(v.GetString("CLIENT_TIMEOUT"), 15*time.Second),
		Email:    v.GetString("CLIENT_EMAIL"),
		Password: v.GetString("CLIENT_PASSWORD"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("APP_TIMEZONE", "UTC")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enfermeria")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "8h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "enfermeria-api")
	v.SetDefault("AUTH_SINGLE_SESSION", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp,application/pdf")

	v.SetDefault("MAIL_HOST", "localhost")
	v.SetDefault("MAIL_PORT", 1025)
	v.SetDefault("MAIL_FROM", "enfermeria@localhost")
	v.SetDefault("MAIL_REPORT_RECIPIENTS", "")
	v.SetDefault("MAIL_REPORT_SUBJECT", "Reporte mensual de enfermería")
	v.SetDefault("MAIL_TIMEOUT", "15s")

	v.SetDefault("REPORTS_CACHE_TTL", "10m")
	v.SetDefault("REPORTS_INVENTORY_SNAPSHOT", InventorySnapshotCurrent)
	v.SetDefault("REPORTS_MAX_UPLOAD_SIZE", 10*1024*1024)
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("ENABLE_SCHEDULED_REPORTS", false)

	v.SetDefault("RECORDS_PAGE_SIZE", 10)
	v.SetDefault("RECORDS_MAX_PAGE_SIZE", 100)
	v.SetDefault("RECORDS_SEARCH_DEBOUNCE", "300ms")
	v.SetDefault("RECORDS_BATCH_LATEST", true)

	v.SetDefault("ENABLE_REALTIME", true)
	v.SetDefault("REALTIME_SEND_BUFFER", 64)
	v.SetDefault("REALTIME_PING_INTERVAL", "30s")

	v.SetDefault("CLIENT_BASE_URL", "http://localhost:8080")
	v.SetDefault("CLIENT_TIMEOUT", "15s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
