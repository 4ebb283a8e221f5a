package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	BackendURL  string
	LogLevel    string
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	APIToken    string
	GatewayURL  string
	Layout      string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:        envInt("DOCURY_PORT", 3000),
		BackendURL:  envStr("API", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		APIToken:    envStr("DOCURY_API_TOKEN", ""),
		GatewayURL:  envStr("DOCURY_GATEWAY_URL", "http://localhost:3000"),
		Layout:      envStr("DOCURY_LAYOUT", "single"),
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
