package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// CacheConfig locates the raster and normalized-document cache.
type CacheConfig struct {
	Dir string
	// UploadTimeout bounds normalize + rasterize for one upload. Zero disables it.
	UploadTimeout time.Duration
}

// SessionConfig selects the session store. Empty RedisURL means in-memory.
type SessionConfig struct {
	RedisURL string
	TTL      time.Duration
}

// DatabaseConfig configures the order ledger. Empty URL means in-memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ArchiveConfig configures the S3 source archive. Empty Bucket disables it.
type ArchiveConfig struct {
	Bucket   string
	Prefix   string
	Password string
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Server   ServerConfig
	Cache    CacheConfig
	Session  SessionConfig
	Database DatabaseConfig
	Archive  ArchiveConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pisoprint.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pisoprint",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "3000"),
		ReadTimeout:     parseDuration(getEnv("HTTP_READ_TIMEOUT", "60s"), 60*time.Second),
		WriteTimeout:    parseDuration(getEnv("HTTP_WRITE_TIMEOUT", "5m"), 5*time.Minute),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "15s"), 15*time.Second),
		MaxUploadBytes:  int64(parseInt(getEnv("MAX_UPLOAD_MB", "50"), 50)) << 20,
	}

	cfg.Cache = CacheConfig{
		Dir:           getEnv("CACHE_DIR", "cache"),
		UploadTimeout: parseDuration(getEnv("UPLOAD_TIMEOUT", "0"), 0),
	}

	cfg.Session = SessionConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		TTL:      parseDuration(getEnv("SESSION_TTL", "24h"), 24*time.Hour),
	}

	cfg.Database = DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		MaxOpenConns:    parseInt(getEnv("DB_MAX_OPEN_CONNS", "10"), 10),
		MaxIdleConns:    parseInt(getEnv("DB_MAX_IDLE_CONNS", "5"), 5),
		ConnMaxLifetime: parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"), 30*time.Minute),
	}

	cfg.Archive = ArchiveConfig{
		Bucket:   getEnv("ARCHIVE_BUCKET", ""),
		Prefix:   strings.Trim(getEnv("ARCHIVE_PREFIX", "sources"), "/"),
		Password: getEnv("ARCHIVE_PASSWORD", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
