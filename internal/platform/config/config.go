// Package config builds process configuration from environment variables so
// main stays lean. Defaults target single-node development; production
// deployments override everything secret-bearing.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// SigningKey signs audit exports and must be overridden in production.
	SigningKey string

	// PostgresDSN enables the durable audit store when non-empty.
	PostgresDSN string

	Redis RedisConfig

	// KafkaBrokers enables the security-event sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	KeyRotationInterval time.Duration
	MonitorInterval     time.Duration
}

// RedisConfig holds the threat-intelligence feed connection settings. An
// empty URL disables Redis; the engine falls back to the static feed.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:       envOr("VIGIL_ADDR", ":8080"),
		SigningKey: envOr("VIGIL_SIGNING_KEY", "dev-secret-key-change-in-production"),

		PostgresDSN: os.Getenv("VIGIL_POSTGRES_DSN"),

		Redis: RedisConfig{
			URL:          os.Getenv("VIGIL_REDIS_URL"),
			PoolSize:     envInt("VIGIL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VIGIL_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("VIGIL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VIGIL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VIGIL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},

		KafkaBrokers: splitList(os.Getenv("VIGIL_KAFKA_BROKERS")),
		KafkaTopic:   envOr("VIGIL_KAFKA_TOPIC", "vigil.security-events"),

		KeyRotationInterval: envDuration("VIGIL_KEY_ROTATION_INTERVAL", 30*24*time.Hour),
		MonitorInterval:     envDuration("VIGIL_MONITOR_INTERVAL", time.Minute),
	}
}

func envOr(key, fallback string) string {
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
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
