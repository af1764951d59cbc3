// Package config builds process configuration from the environment so main
// stays lean. A local .env file is honored in development when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr     string
	Env      string
	LogLevel string

	// SessionBackend selects the session store: memory, redis, or postgres.
	SessionBackend string
	PostgresURL    string
	Redis          RedisConfig

	// SessionTTL is the inactivity window before a session is archived.
	SessionTTL    time.Duration
	SweepInterval time.Duration

	// RateTablePath overrides the embedded rate-table document when set.
	RateTablePath string

	Ollama OllamaConfig
	Kafka  KafkaConfig
}

// RedisConfig holds connection tuning for the redis session backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// OllamaConfig points at the local LLM used for conversational replies.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// KafkaConfig configures the audit-event publisher. Empty brokers disable
// Kafka publishing; transitions are then kept in the in-memory audit store.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables with development
// defaults. A missing rate-table entry is a startup failure elsewhere;
// a missing env var is not.
func FromEnv() Config {
	// Best effort: absence of .env is the normal production case.
	_ = godotenv.Load()

	return Config{
		Addr:           envOr("LIFESHIELD_ADDR", ":8080"),
		Env:            envOr("LIFESHIELD_ENV", "development"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		SessionBackend: envOr("SESSION_BACKEND", "memory"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		SessionTTL:    envDurationOr("SESSION_TTL", 24*time.Hour),
		SweepInterval: envDurationOr("SESSION_SWEEP_INTERVAL", 15*time.Minute),
		RateTablePath: os.Getenv("RATE_TABLE_PATH"),
		Ollama: OllamaConfig{
			BaseURL:    envOr("OLLAMA_BASE_URL", "http://127.0.0.1:11434"),
			Model:      envOr("OLLAMA_MODEL", "qwen2.5:7b"),
			Timeout:    envDurationOr("OLLAMA_TIMEOUT", 30*time.Second),
			MaxRetries: envIntOr("OLLAMA_MAX_RETRIES", 3),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_AUDIT_TOPIC", "lifeshield.stage-transitions"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
