package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config collects every environment knob the service reads. Loaded once at
// startup; godotenv fills the environment from .env before FromEnv runs.
type Config struct {
	Port string

	CRMBaseURL    string
	CRMAPIKey     string
	CRMAPIVersion string

	TranscribeURL    string
	TranscribeAPIKey string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	DBPath string

	RecordingTimeout  time.Duration
	RecordingMaxBytes int64
	UpstreamTimeout   time.Duration

	EnrichBatchSize int
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:              envOr("PORT", "8080"),
		CRMBaseURL:        envOr("CRM_BASE_URL", "https://services.leadconnectorhq.com"),
		CRMAPIKey:         os.Getenv("CRM_API_KEY"),
		CRMAPIVersion:     envOr("CRM_API_VERSION", "2021-07-28"),
		TranscribeURL:     envOr("TRANSCRIBE_URL", "https://api.openai.com/v1/audio/transcriptions"),
		TranscribeAPIKey:  os.Getenv("TRANSCRIBE_API_KEY"),
		LLMBaseURL:        envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:         os.Getenv("LLM_API_KEY"),
		LLMModel:          envOr("LLM_MODEL", "gpt-4o"),
		DBPath:            envOr("DB_PATH", "insights.db"),
		RecordingTimeout:  envDuration("RECORDING_TIMEOUT_SEC", 90),
		RecordingMaxBytes: envInt64("RECORDING_MAX_BYTES", 25*1024*1024),
		UpstreamTimeout:   envDuration("UPSTREAM_TIMEOUT_SEC", 30),
		EnrichBatchSize:   int(envInt64("ENRICH_BATCH_SIZE", 4)),
	}
	if cfg.CRMAPIKey == "" {
		return cfg, fmt.Errorf("CRM_API_KEY not set")
	}
	if cfg.EnrichBatchSize < 1 {
		return cfg, fmt.Errorf("ENRICH_BATCH_SIZE must be >= 1")
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDuration(k string, defSeconds int) time.Duration {
	return time.Duration(envInt64(k, int64(defSeconds))) * time.Second
}
