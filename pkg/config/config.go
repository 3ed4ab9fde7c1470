// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider selects the LLM backend used for analysis and generation.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

type Config struct {
	Addr string

	DatabaseURL string

	Provider        Provider
	AnthropicAPIKey string
	GeminiAPIKey    string
	// Model overrides the provider's default model when set.
	Model string

	GuideDir string

	MaxConcurrent    int
	MaxFollowUpDepth int
	DispatchSpec     string

	STTTimeout      time.Duration
	AnalysisRetries int

	AlertSuppression time.Duration

	ShutdownGracePeriod time.Duration

	LogLevel  string
	LogFormat string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("VOX_ADDR", ":8080"),
		DatabaseURL:         envOr("VOX_DATABASE_URL", ""),
		Provider:            Provider(envOr("VOX_PROVIDER", string(ProviderAnthropic))),
		AnthropicAPIKey:     envOr("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:        envOr("GEMINI_API_KEY", ""),
		Model:               envOr("VOX_MODEL", ""),
		GuideDir:            envOr("VOX_GUIDE_DIR", "guides"),
		MaxConcurrent:       envIntOr("VOX_MAX_CONCURRENT", 8),
		MaxFollowUpDepth:    envIntOr("VOX_MAX_FOLLOW_UP_DEPTH", 3),
		DispatchSpec:        envOr("VOX_DISPATCH_SPEC", "@every 30s"),
		STTTimeout:          envDurationOr("VOX_STT_TIMEOUT", 10*time.Second),
		AnalysisRetries:     envIntOr("VOX_ANALYSIS_RETRIES", 2),
		AlertSuppression:    envDurationOr("VOX_ALERT_SUPPRESSION", 5*time.Minute),
		ShutdownGracePeriod: envDurationOr("VOX_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		LogLevel:            envOr("VOX_LOG_LEVEL", "info"),
		LogFormat:           envOr("VOX_LOG_FORMAT", "json"),
	}

	switch cfg.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return Config{}, fmt.Errorf("VOX_PROVIDER must be one of anthropic|gemini")
	}
	if cfg.Provider == ProviderAnthropic && cfg.AnthropicAPIKey == "" {
		return Config{}, fmt.Errorf("ANTHROPIC_API_KEY must be set when VOX_PROVIDER=anthropic")
	}
	if cfg.Provider == ProviderGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY must be set when VOX_PROVIDER=gemini")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("VOX_DATABASE_URL must be set")
	}
	if cfg.MaxConcurrent <= 0 {
		return Config{}, fmt.Errorf("VOX_MAX_CONCURRENT must be > 0")
	}
	if cfg.MaxFollowUpDepth <= 0 {
		return Config{}, fmt.Errorf("VOX_MAX_FOLLOW_UP_DEPTH must be > 0")
	}
	if cfg.STTTimeout <= 0 {
		return Config{}, fmt.Errorf("VOX_STT_TIMEOUT must be > 0")
	}
	if cfg.AnalysisRetries < 0 {
		return Config{}, fmt.Errorf("VOX_ANALYSIS_RETRIES must be >= 0")
	}
	if cfg.AlertSuppression <= 0 {
		return Config{}, fmt.Errorf("VOX_ALERT_SUPPRESSION must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOX_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("VOX_LOG_FORMAT must be one of text|json")
	}

	return cfg, nil
}

// APIKey returns the key for the configured provider.
func (c Config) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.AnthropicAPIKey
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
