// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	APIPrefix      string
	DBPath         string
	UploadDir      string
	MaxUploadBytes int64
	CORSOrigins    []string
	LogLevel       slog.Level
	Auth           AuthConfig
	LLM            LLMConfig
	RateLimit      RateLimitConfig
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LLMConfig controls the language-model capability.
type LLMConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Enabled reports whether a model API key is configured.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// RateLimitConfig controls per-user chat throttling.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// devJWTSecret is only accepted when IsDevelopment is true.
const devJWTSecret = "chat2test-dev-secret"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	rpm := getEnvInt("CHAT_RATE_LIMIT", 30)
	if rpm <= 0 {
		rpm = 30
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		APIPrefix:      getEnv("API_PREFIX", "/Chat2Test/v1"),
		DBPath:         getEnv("DB_PATH", "./data/chat2test.db"),
		UploadDir:      getEnv("UPLOAD_DIR", "./data/uploads"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout: getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: rpm,
			Burst:             getEnvInt("CHAT_RATE_BURST", 5),
		},
	}

	if cfg.Auth.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.Auth.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR cannot be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with /")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("CHAT_RATE_BURST must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
