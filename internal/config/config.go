package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              int
	DatabaseURL       string
	NatsURL           string
	NatsToken         string
	RedisURL          string
	LogLevel          string
	LLMProvider       string
	AnthropicAPIKey   string
	AnthropicModel    string
	OpenAIAPIKey      string
	OpenAIModel       string
	PredictorURL      string
	PredictorAPIKey   string
	PredictorTimeout  time.Duration
	CacheTTL          time.Duration
	ReconcileSchedule string
	APIToken          string
}

// LoadEnvFile reads KEY=VALUE pairs from the given files (default .env)
// into the environment. Missing files are ignored and variables already
// set in the environment win.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func Load() Config {
	return Config{
		Port:              envInt("TRIBUNAL_PORT", 8760),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		NatsURL:           envStr("NATS_URL", ""),
		NatsToken:         envStr("NATS_TOKEN", ""),
		RedisURL:          envStr("REDIS_URL", ""),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		LLMProvider:       envStr("LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey:   envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    envStr("TRIBUNAL_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:      envStr("OPENAI_API_KEY", ""),
		OpenAIModel:       envStr("OPENAI_MODEL", "gpt-4o-mini"),
		PredictorURL:      envStr("PREDICTOR_URL", ""),
		PredictorAPIKey:   envStr("PREDICTOR_API_KEY", ""),
		PredictorTimeout:  envDuration("PREDICTOR_TIMEOUT", 10*time.Second),
		CacheTTL:          envDuration("PREDICTION_CACHE_TTL", time.Hour),
		ReconcileSchedule: envStr("METRICS_RECONCILE_SCHEDULE", "0 * * * *"),
		APIToken:          envStr("TRIBUNAL_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
