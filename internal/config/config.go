// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the service needs at startup.
type Config struct {
	Addr string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	DeezerBaseURL string
	TrackRelayURL string

	DBPath     string
	Workers    int
	QueueSize  int
	SessionTTL time.Duration

	UpstreamTimeout time.Duration
	SecureCookie    bool

	LogLevel string
}

// Load reads the environment, applying defaults for anything unset. A
// missing GEMINI_API_KEY is not an error: generation requests report it.
func Load() (Config, error) {
	cfg := Config{
		Addr:          getEnv("AURA_ADDR", ":8080"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: os.Getenv("GEMINI_BASE_URL"),
		DeezerBaseURL: getEnv("DEEZER_BASE_URL", "https://api.deezer.com"),
		TrackRelayURL: os.Getenv("TRACK_RELAY_URL"),
		DBPath:        getEnv("AURA_DB_PATH", ":memory:"),
		LogLevel:      getEnv("AURA_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Workers, err = getInt("AURA_WORKERS", 2); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = getInt("AURA_QUEUE_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getDuration("AURA_SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamTimeout, err = getDuration("AURA_UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SecureCookie, err = getBool("AURA_SECURE_COOKIE", false); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("config: listen address is required")
	case c.Workers < 1:
		return fmt.Errorf("config: AURA_WORKERS must be at least 1, got %d", c.Workers)
	case c.QueueSize < 1:
		return fmt.Errorf("config: AURA_QUEUE_SIZE must be at least 1, got %d", c.QueueSize)
	case c.SessionTTL <= 0:
		return fmt.Errorf("config: AURA_SESSION_TTL must be positive, got %s", c.SessionTTL)
	case c.UpstreamTimeout <= 0:
		return fmt.Errorf("config: AURA_UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}
