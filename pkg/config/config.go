package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Ledger        LedgerConfig
	OCR           OCRConfig
	Storage       StorageConfig
	Mail          MailConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	AllowedOrigins     []string
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxUploadBytes     int64
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type LedgerConfig struct {
	Strategy        string
	ShareBaseURL    string
	RosterPath      string
	FuzzyThreshold  int
	SearchIndexPath string
	Retention       time.Duration
}

type OCRConfig struct {
	Languages      []string
	PageSegMode    int
	TessdataPrefix string
	Preprocess     bool
	Concurrency    int
	Timeout        time.Duration
	RatePerSecond  float64
	RateBurst      int
}

type StorageConfig struct {
	LocalPath     string
	Retention     time.Duration
	PurgeSchedule string
}

type MailConfig struct {
	ResendAPIKey string
	FromEmail    string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	TracingEnabled bool
	ServiceName    string
	LogLevel       string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:     getEnvAsSlice("SERVER_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 40),
			MaxUploadBytes:     int64(getEnvAsInt("SERVER_MAX_UPLOAD_MB", 32)) << 20,
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("POSTGRES_ENABLED", true),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "gift-ledger"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Ledger: LedgerConfig{
			Strategy:        getEnv("LEDGER_STRATEGY", "per-line"),
			ShareBaseURL:    getEnv("LEDGER_SHARE_BASE_URL", ""),
			RosterPath:      getEnv("LEDGER_ROSTER_PATH", ""),
			FuzzyThreshold:  getEnvAsInt("LEDGER_FUZZY_THRESHOLD", 70),
			SearchIndexPath: getEnv("LEDGER_SEARCH_INDEX_PATH", ""),
			Retention:       getEnvAsDuration("LEDGER_RETENTION", 0),
		},
		OCR: OCRConfig{
			Languages:      getEnvAsSlice("OCR_LANGUAGES", []string{"kor", "eng"}),
			PageSegMode:    getEnvAsInt("OCR_PAGE_SEG_MODE", 6),
			TessdataPrefix: getEnv("TESSDATA_PREFIX", ""),
			Preprocess:     getEnvAsBool("OCR_PREPROCESS", true),
			Concurrency:    getEnvAsInt("OCR_CONCURRENCY", 2),
			Timeout:        getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
			RatePerSecond:  getEnvAsFloat("OCR_RATE_PER_SECOND", 0),
			RateBurst:      getEnvAsInt("OCR_RATE_BURST", 1),
		},
		Storage: StorageConfig{
			LocalPath:     getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			Retention:     getEnvAsDuration("STORAGE_RETENTION", 24*time.Hour),
			PurgeSchedule: getEnv("STORAGE_PURGE_SCHEDULE", "0 3 * * *"),
		},
		Mail: MailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("RESEND_FROM_EMAIL", "장부 <ledger@example.com>"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			TracingEnabled: getEnvAsBool("TRACING_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "gift-ledger"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Ledger.ShareBaseURL == "" {
		cfg.Ledger.ShareBaseURL = cfg.Server.BaseURL
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Ledger.FuzzyThreshold < 0 || c.Ledger.FuzzyThreshold > 100 {
		return fmt.Errorf("LEDGER_FUZZY_THRESHOLD must be between 0 and 100, got %d", c.Ledger.FuzzyThreshold)
	}
	if c.OCR.Concurrency < 1 {
		return errors.New("OCR_CONCURRENCY must be at least 1")
	}
	if len(c.OCR.Languages) == 0 {
		return errors.New("OCR_LANGUAGES is required")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma or plus separated list ("kor+eng").
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.FieldsFunc(valueStr, func(r rune) bool { return r == ',' || r == '+' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
