package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Reasoning backends accepted by REASONING_BACKEND.
const (
	BackendNone   = "none"
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

type Config struct {
	LogLevel  string
	GCP       GCPConfig
	Database  DatabaseConfig
	Reasoning ReasoningConfig
	Extract   ExtractConfig
	Retry     RetryConfig
	Notion    NotionConfig
	Worker    WorkerConfig
	Telemetry TelemetryConfig
}

type GCPConfig struct {
	ProjectID string
	DatasetID string
	Bucket    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ReasoningConfig struct {
	Backend     string
	GeminiModel string
	OpenAIKey   string
	OpenAIModel string
	CallTimeout time.Duration
}

type ExtractConfig struct {
	PdftotextPath string
	TesseractPath string
	PdftoppmPath  string
	TierTimeout   time.Duration
	Threshold     float64
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type NotionConfig struct {
	Token      string
	DatabaseID string
}

type WorkerConfig struct {
	Concurrency int
	QueueSize   int
	// ListenAddr serves the job API.
	ListenAddr string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsAddr  string
}

// Load reads FININGEST_* variables from the environment, applying defaults.
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	callTimeout, err := time.ParseDuration(getEnv("REASONING_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REASONING_TIMEOUT: %w", err)
	}
	tierTimeout, err := time.ParseDuration(getEnv("TIER_TIMEOUT", "90s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIER_TIMEOUT: %w", err)
	}
	threshold, err := strconv.ParseFloat(getEnv("CONFIDENCE_THRESHOLD", "0.85"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CONFIDENCE_THRESHOLD: %w", err)
	}
	retryAttempts, err := strconv.Atoi(getEnv("RETRY_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_MAX_ATTEMPTS: %w", err)
	}
	retryDelay, err := time.ParseDuration(getEnv("RETRY_BASE_DELAY", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_BASE_DELAY: %w", err)
	}
	workers, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}
	queueSize, err := strconv.Atoi(getEnv("WORKER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_QUEUE_SIZE: %w", err)
	}

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		GCP: GCPConfig{
			ProjectID: getEnv("GCP_PROJECT", ""),
			DatasetID: getEnv("BQ_DATASET", "finance"),
			Bucket:    getEnv("GCS_BUCKET", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "finingest"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "finingest"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Reasoning: ReasoningConfig{
			Backend:     strings.ToLower(getEnv("REASONING_BACKEND", BackendNone)),
			GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			CallTimeout: callTimeout,
		},
		Extract: ExtractConfig{
			PdftotextPath: getEnv("PDFTOTEXT_PATH", "pdftotext"),
			TesseractPath: getEnv("TESSERACT_PATH", "tesseract"),
			PdftoppmPath:  getEnv("PDFTOPPM_PATH", "pdftoppm"),
			TierTimeout:   tierTimeout,
			Threshold:     threshold,
		},
		Retry: RetryConfig{
			MaxAttempts: retryAttempts,
			BaseDelay:   retryDelay,
		},
		Notion: NotionConfig{
			Token:      getEnv("NOTION_TOKEN", ""),
			DatabaseID: getEnv("NOTION_SUBSCRIPTIONS_DB", ""),
		},
		Worker: WorkerConfig{
			Concurrency: workers,
			QueueSize:   queueSize,
			ListenAddr:  getEnv("WORKER_ADDR", ":8080"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "finingest"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsAddr:  getEnv("METRICS_ADDR", ":9464"),
		},
	}

	switch cfg.Reasoning.Backend {
	case BackendNone, BackendGemini:
	case BackendOpenAI:
		if cfg.Reasoning.OpenAIKey == "" {
			return nil, fmt.Errorf("FININGEST_OPENAI_API_KEY is required when FININGEST_REASONING_BACKEND=openai")
		}
	default:
		return nil, fmt.Errorf("invalid REASONING_BACKEND %q", cfg.Reasoning.Backend)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0, 1], got %v", threshold)
	}
	if retryAttempts < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if workers < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}

	return cfg, nil
}

// ConnectionString returns a lib/pq keyword DSN.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

const envPrefix = "FININGEST_"

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}
