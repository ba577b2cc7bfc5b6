package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for every knob; all can be overridden via environment variables.
const (
	DefaultMaxUploadBytes     = 10 << 20 // 10 MiB
	DefaultWorkerCount        = 5
	DefaultQueueDepth         = 100
	DefaultProcessingTimeout  = 2 * time.Minute
	DefaultStuckRunAge        = 10 * time.Minute
	DefaultReaperSchedule     = "*/5 * * * *"
	DefaultDuplicateThreshold = 0.80
	DefaultDataset            = "ledgerscan"
)

// Config holds runtime configuration for the API and worker binaries.
type Config struct {
	// HTTP
	Port string

	// Storage
	GCSBucket string

	// BigQuery
	ProjectID string
	Dataset   string

	// Pipeline
	MaxUploadBytes     int64
	WorkerCount        int
	QueueDepth         int
	ProcessingTimeout  time.Duration
	StuckRunAge        time.Duration
	ReaperSchedule     string
	DuplicateThreshold float64

	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; a missing file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		ProjectID:          os.Getenv("GCP_PROJECT"),
		Dataset:            getEnv("BQ_DATASET", DefaultDataset),
		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		WorkerCount:        getEnvInt("WORKER_COUNT", DefaultWorkerCount),
		QueueDepth:         getEnvInt("QUEUE_DEPTH", DefaultQueueDepth),
		ProcessingTimeout:  getEnvDuration("PROCESSING_TIMEOUT", DefaultProcessingTimeout),
		StuckRunAge:        getEnvDuration("STUCK_RUN_AGE", DefaultStuckRunAge),
		ReaperSchedule:     getEnv("REAPER_SCHEDULE", DefaultReaperSchedule),
		DuplicateThreshold: getEnvFloat("DUPLICATE_THRESHOLD", DefaultDuplicateThreshold),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
