package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, DefaultMaxUploadBytes)
	}
	if cfg.ProcessingTimeout != DefaultProcessingTimeout {
		t.Errorf("ProcessingTimeout = %v, want %v", cfg.ProcessingTimeout, DefaultProcessingTimeout)
	}
	if cfg.DuplicateThreshold != DefaultDuplicateThreshold {
		t.Errorf("DuplicateThreshold = %v, want %v", cfg.DuplicateThreshold, DefaultDuplicateThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("PROCESSING_TIMEOUT", "30s")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.MaxUploadBytes != 1024 {
		t.Errorf("MaxUploadBytes = %d, want 1024", cfg.MaxUploadBytes)
	}
	if cfg.ProcessingTimeout != 30*time.Second {
		t.Errorf("ProcessingTimeout = %v, want 30s", cfg.ProcessingTimeout)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("WorkerCount = %d, want 2", cfg.WorkerCount)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")
	t.Setenv("PROCESSING_TIMEOUT", "-5s")

	cfg := Load()

	if cfg.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("MaxUploadBytes = %d, want default %d", cfg.MaxUploadBytes, DefaultMaxUploadBytes)
	}
	if cfg.ProcessingTimeout != DefaultProcessingTimeout {
		t.Errorf("ProcessingTimeout = %v, want default %v", cfg.ProcessingTimeout, DefaultProcessingTimeout)
	}
}
