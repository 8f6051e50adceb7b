// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env setup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for codeassist.
type Config struct {
	// HTTP
	Host string // HOST — default: "0.0.0.0"
	Port int    // PORT — default: 5000
	// CORS_ALLOWED_ORIGINS — comma separated, default: "*"
	CORSAllowedOrigins []string

	// LLM
	DefaultProvider string        // LLM_DEFAULT_PROVIDER — default: "openai"
	LLMTimeout      time.Duration // LLM_TIMEOUT — default: 120s
	LLMRateLimit    float64       // LLM_RATE_LIMIT — outbound requests/second, 0 disables
	TokenEstimator  string        // TOKEN_ESTIMATOR — "chars" (default) | "tiktoken"
	PromptCatalog   string        // PROMPT_CATALOG_PATH — optional YAML override

	// Conversation memory
	SessionBackend string // SESSION_BACKEND — "memory" (default) | "sqlite"
	DatabasePath   string // DATABASE_PATH — default: "data/codeassist.db"

	// Logging
	LogLevel  string // LOG_LEVEL — default: "info"
	LogFormat string // LOG_FORMAT — "text" (default) | "json"
}

const (
	envKeyHost            = "HOST"
	envKeyPort            = "PORT"
	envKeyCORSOrigins     = "CORS_ALLOWED_ORIGINS"
	envKeyDefaultProvider = "LLM_DEFAULT_PROVIDER"
	envKeyLLMTimeout      = "LLM_TIMEOUT"
	envKeyLLMRateLimit    = "LLM_RATE_LIMIT"
	envKeyTokenEstimator  = "TOKEN_ESTIMATOR"
	envKeyPromptCatalog   = "PROMPT_CATALOG_PATH"
	envKeySessionBackend  = "SESSION_BACKEND"
	envKeyDatabasePath    = "DATABASE_PATH"
	envKeyLogLevel        = "LOG_LEVEL"
	envKeyLogFormat       = "LOG_FORMAT"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendSQLite = "sqlite"

	EstimatorChars    = "chars"
	EstimatorTiktoken = "tiktoken"
)

// Load reads configuration from environment variables, applying defaults for missing values.
func Load() Config {
	return Config{
		Host:               envOr(envKeyHost, "0.0.0.0"),
		Port:               envIntOr(envKeyPort, 5000),
		CORSAllowedOrigins: envListOr(envKeyCORSOrigins, []string{"*"}),
		DefaultProvider:    envOr(envKeyDefaultProvider, "openai"),
		LLMTimeout:         envDurationOr(envKeyLLMTimeout, 120*time.Second),
		LLMRateLimit:       envFloatOr(envKeyLLMRateLimit, 0),
		TokenEstimator:     envOr(envKeyTokenEstimator, EstimatorChars),
		PromptCatalog:      os.Getenv(envKeyPromptCatalog),
		SessionBackend:     envOr(envKeySessionBackend, SessionBackendMemory),
		DatabasePath:       envOr(envKeyDatabasePath, "data/codeassist.db"),
		LogLevel:           envOr(envKeyLogLevel, "info"),
		LogFormat:          envOr(envKeyLogFormat, "text"),
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env") into the
// process environment. Variables already set are never overridden. A missing
// file is not an error; the loaded paths are returned.
func LoadDotEnv(paths ...string) []string {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	loaded := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envListOr splits a comma separated value, dropping blanks.
func envListOr(key string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envIntOr(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloatOr(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

// envDurationOr accepts Go duration syntax ("90s", "2m").
func envDurationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
