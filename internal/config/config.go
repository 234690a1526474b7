package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	GeminiAPIKey       string
	OpenAIAPIKey       string
	GenerationProvider string
	GeminiModel        string
	OpenAIImageModel   string
	DatabaseURL        string
	HTTPPort           string
	LogLevel           string
	LogFormat          string
	JWTSecret          string
	GenerationTimeout  time.Duration
	RevealInterval     time.Duration
	AllowedOrigins     []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
}

// Load reads a .env file when present and then the environment. It reports
// whether a .env file was found so callers can log it once a logger exists.
func Load() (*Config, bool) {
	dotenv := godotenv.Load() == nil

	cfg := &Config{
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		GenerationProvider: strings.ToLower(getEnv("GENERATION_PROVIDER", ProviderGemini)),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		OpenAIImageModel:   getEnv("OPENAI_IMAGE_MODEL", "dall-e-2"),
		DatabaseURL:        getEnv("DATABASE_URL", "visra.db"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		GenerationTimeout:  getEnvAsDuration("GENERATION_TIMEOUT", 45*time.Second),
		RevealInterval:     getEnvAsDuration("REVEAL_INTERVAL", 15*time.Millisecond),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRequests:  getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:    getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
	return cfg, dotenv
}

// Validate checks the settings the server cannot start without. The CLI only
// needs the provider key when it generates.
func (c *Config) Validate() error {
	var errs []error
	switch c.GenerationProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY environment variable is required"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY environment variable is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("GENERATION_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.GenerationProvider))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}
	if c.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
