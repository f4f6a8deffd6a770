// Package config loads service settings from the environment, reading a
// .env file first when one is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Export    ExportConfig
}

type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	MaxReceiptBytes int64
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

type AuthConfig struct {
	JWTSecret      string
	JWTAudience    string
	GoogleClientID string
}

type AIConfig struct {
	APIKey          string
	Model           string
	ChatMaxAttempts int
}

type RateLimitConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FailOpen      bool
	SweepInterval time.Duration
}

type StorageConfig struct {
	Bucket          string
	CredentialsFile string
}

type ExportConfig struct {
	NotionToken      string
	NotionDatabaseID string
	BigQueryProject  string
	BigQueryDataset  string
}

const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// Load reads the configuration. It fails on malformed values and on
// settings the API server cannot start without.
func Load() (*Config, error) {
	_ = godotenv.Load()

	maxOpen, err := getIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	maxReceipt, err := getIntEnv("MAX_RECEIPT_BYTES", 8<<20)
	if err != nil {
		return nil, err
	}
	chatAttempts, err := getIntEnv("AI_CHAT_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	sweep, err := getDurationEnv("RATE_LIMIT_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	shutdown, err := getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	failOpen, err := getBoolEnv("RATE_LIMIT_FAIL_OPEN", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			MaxReceiptBytes: int64(maxReceipt),
			ShutdownTimeout: shutdown,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: maxOpen,
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
			JWTAudience:    getEnv("AUTH_JWT_AUDIENCE", ""),
			GoogleClientID: getEnv("AUTH_GOOGLE_CLIENT_ID", ""),
		},
		AI: AIConfig{
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			Model:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			ChatMaxAttempts: chatAttempts,
		},
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitMemory)),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
			FailOpen:      failOpen,
			SweepInterval: sweep,
		},
		Storage: StorageConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS_FILE", ""),
		},
		Export: ExportConfig{
			NotionToken:      getEnv("NOTION_TOKEN", ""),
			NotionDatabaseID: getEnv("NOTION_TRANSACTIONS_DB_ID", ""),
			BigQueryProject:  getEnv("BIGQUERY_PROJECT", ""),
			BigQueryDataset:  getEnv("BIGQUERY_DATASET", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Auth.JWTSecret == "" && c.Auth.GoogleClientID == "" {
		errs = append(errs, errors.New("one of AUTH_JWT_SECRET or AUTH_GOOGLE_CLIENT_ID is required"))
	}
	if c.RateLimit.Backend != RateLimitMemory && c.RateLimit.Backend != RateLimitRedis {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_BACKEND %q: want memory or redis", c.RateLimit.Backend))
	}
	if c.AI.ChatMaxAttempts < 1 {
		errs = append(errs, errors.New("AI_CHAT_MAX_ATTEMPTS must be at least 1"))
	}
	if c.RateLimit.SweepInterval <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_SWEEP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// NotionEnabled reports whether transactions are mirrored to Notion.
func (c *Config) NotionEnabled() bool {
	return c.Export.NotionToken != "" && c.Export.NotionDatabaseID != ""
}

// BigQueryEnabled reports whether transactions are mirrored to BigQuery.
func (c *Config) BigQueryEnabled() bool {
	return c.Export.BigQueryProject != "" && c.Export.BigQueryDataset != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
