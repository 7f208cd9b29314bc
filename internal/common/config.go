package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Blob     BlobConfig
	Dispatch DispatchConfig
	Ingest   IngestConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration. An empty DSN
// selects the in-memory repository.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// BlobConfig holds blob store configuration
type BlobConfig struct {
	Root string
}

// DispatchConfig selects and configures the stage dispatch backend.
// Backend is "http", "topic" or "mock".
type DispatchConfig struct {
	Backend      string
	HTTPEndpoint string
	HTTPTimeout  time.Duration
	TopicDB      string
	TopicPoll    time.Duration
}

// IngestConfig holds inbox watcher configuration
type IngestConfig struct {
	Roots       []string
	InitialScan bool
	Debounce    time.Duration
	CompanyID   string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftotext string
	Pdftoppm  string
	Languages []string
	DPI       int
	MaxPages  int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

// PipelineConfig holds pipeline tuning knobs
type PipelineConfig struct {
	CatalogPath     string
	ReviewThreshold float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Blob: BlobConfig{
			Root: getEnv("BLOB_ROOT", "./data/blobs"),
		},
		Dispatch: DispatchConfig{
			Backend:      getEnv("DISPATCH_BACKEND", "http"),
			HTTPEndpoint: getEnv("DISPATCH_HTTP_ENDPOINT", "http://127.0.0.1:8080/internal/pipeline/stage"),
			HTTPTimeout:  getEnvAsDuration("DISPATCH_HTTP_TIMEOUT", 5*time.Second),
			TopicDB:      getEnv("DISPATCH_TOPIC_DB", "./data/topics.db"),
			TopicPoll:    getEnvAsDuration("DISPATCH_TOPIC_POLL", 250*time.Millisecond),
		},
		Ingest: IngestConfig{
			Roots:       getEnvAsList("INGEST_ROOTS"),
			InitialScan: getEnvAsBool("INGEST_INITIAL_SCAN", true),
			Debounce:    getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
			CompanyID:   getEnv("INGEST_COMPANY_ID", ""),
		},
		OCR: OCRConfig{
			Pdftotext: getEnv("OCR_PDFTOTEXT", "pdftotext"),
			Pdftoppm:  getEnv("OCR_PDFTOPPM", "pdftoppm"),
			Languages: getEnvAsListDefault("OCR_LANGUAGES", []string{"eng", "nld"}),
			DPI:       getEnvAsInt("OCR_DPI", 300),
			MaxPages:  getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat64("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Pipeline: PipelineConfig{
			CatalogPath:     getEnv("CATALOG_PATH", ""),
			ReviewThreshold: getEnvAsFloat64("REVIEW_THRESHOLD", 0.75),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	return getEnvAsListDefault(key, nil)
}

func getEnvAsListDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	switch c.Dispatch.Backend {
	case "http", "topic", "mock":
	default:
		return NewAppError("CONFIG_ERROR", "DISPATCH_BACKEND must be http, topic or mock", ErrInvalidInput)
	}
	if c.Dispatch.Backend == "http" && c.Dispatch.HTTPEndpoint == "" {
		return NewAppError("CONFIG_ERROR", "DISPATCH_HTTP_ENDPOINT is required", ErrInvalidInput)
	}
	if c.Dispatch.Backend == "topic" && c.Dispatch.TopicDB == "" {
		return NewAppError("CONFIG_ERROR", "DISPATCH_TOPIC_DB is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY or OPENAI_BASE_URL is required", ErrInvalidInput)
	}
	return nil
}
