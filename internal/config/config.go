package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	// Backend
	APIBaseURL string
	Token      string

	// Local state
	DataDir   string
	DebugAddr string

	// Timing
	RequestTimeout time.Duration
	ReconnectDelay time.Duration
	DedupeWindow   time.Duration

	// Initial notification fetch
	PageSize int
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080/api"),
		Token:      getEnv("SESSION_TOKEN", ""),

		DataDir:   getEnv("DATA_DIR", "data"),
		DebugAddr: getEnv("DEBUG_ADDR", ":9280"),

		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ReconnectDelay: getEnvDuration("RECONNECT_DELAY", 3*time.Second),
		DedupeWindow:   getEnvDuration("DEDUPE_WINDOW", 10*time.Second),

		PageSize: getEnvInt("NOTIFICATION_PAGE_SIZE", 50),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
