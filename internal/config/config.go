package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	DatabaseURL     string
	NatsURL         string
	NatsToken       string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	CasemanBaseURL  string
	CasemanAPIKey   string
}

func Load() Config {
	// A local .env is a convenience for development; absence is not an error.
	_ = godotenv.Load()

	return Config{
		Port:            envInt("TRAMITA_PORT", 8810),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		NatsURL:         envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("TRAMITA_MODEL", "claude-sonnet-4-20250514"),
		CasemanBaseURL:  envStr("CASEMAN_BASE_URL", ""),
		CasemanAPIKey:   envStr("CASEMAN_API_KEY", ""),
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
