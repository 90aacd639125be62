// Package config reads process configuration from the environment,
// falling back to sensible defaults, the way cmd/server's init() reads
// ENV/DEBUG/PORT. Every tunable — settlement delay, worker pool size,
// processing deadline — has a single place it's read from instead of
// scattered os.Getenv calls.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable setting cmd/server needs.
type Config struct {
	Port            string
	Env             string
	Debug           bool
	DBPath          string
	WorkerPoolSize  int
	QueueSize       int
	ProcessingDeadline time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	SettlementDelay time.Duration
}

// Load reads Config from the environment.
func Load() Config {
	return Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		Debug:              getEnv("DEBUG", "false") == "true",
		DBPath:             getEnv("DB_PATH", "order-core.db"),
		WorkerPoolSize:     getEnvInt("WORKER_POOL_SIZE", 4),
		QueueSize:          getEnvInt("QUEUE_SIZE", 256),
		ProcessingDeadline: getEnvDuration("ORDER_PROCESSING_DEADLINE", 30*time.Second),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay:     getEnvDuration("RETRY_BASE_DELAY", 50*time.Millisecond),
		SettlementDelay:    getEnvDuration("SETTLEMENT_DELAY", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
