package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"GENERATION_PROVIDER", "DATABASE_URL", "GENERATION_TIMEOUT", "ALLOWED_ORIGINS", "RATE_LIMIT_REQUESTS", "LOG_FORMAT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, _ := Load()
	if cfg.GenerationProvider != ProviderGemini {
		t.Errorf("provider = %q", cfg.GenerationProvider)
	}
	if cfg.GenerationTimeout != 45*time.Second {
		t.Errorf("timeout = %v, want 45s", cfg.GenerationTimeout)
	}
	if cfg.RateLimitRequests != 30 {
		t.Errorf("rate limit = %d, want 30", cfg.RateLimitRequests)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("log format = %q, want json", cfg.LogFormat)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GENERATION_PROVIDER", "OpenAI")
	t.Setenv("GENERATION_TIMEOUT", "10s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")

	cfg, _ := Load()
	if cfg.GenerationProvider != ProviderOpenAI {
		t.Errorf("provider = %q, want openai", cfg.GenerationProvider)
	}
	if cfg.GenerationTimeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.GenerationTimeout)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("origins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if cfg.RateLimitRequests != 5 {
		t.Errorf("rate limit = %d", cfg.RateLimitRequests)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		GenerationProvider: ProviderGemini,
		GeminiAPIKey:       "key",
		JWTSecret:          "secret",
		GenerationTimeout:  time.Second,
		RateLimitRequests:  1,
		RateLimitWindow:    time.Second,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	missing := valid
	missing.GeminiAPIKey = ""
	missing.JWTSecret = ""
	err := missing.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"GEMINI_API_KEY", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	openai := valid
	openai.GenerationProvider = ProviderOpenAI
	if err := openai.Validate(); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("expected OPENAI_API_KEY error, got %v", err)
	}
}
