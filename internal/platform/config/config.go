package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	AdminJWTKey   string
	PostgresURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	Ledger        CollaboratorConfig
	Scoring       CollaboratorConfig
	Extraction    CollaboratorConfig
	SessionTTL    time.Duration
	LockTTL       time.Duration
	ScanRatePerIP float64
}

// RedisConfig captures Redis connection settings. An empty URL means Redis is
// not configured and in-memory fallbacks are wired instead.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures the optional audit sink settings. Empty brokers means
// audit events stay on the local store only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// CollaboratorConfig captures an external collaborator endpoint. Timeout
// bounds every call; the services never retry on their own.
type CollaboratorConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("VERITAG_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtKey := os.Getenv("VERITAG_ADMIN_JWT_KEY")
	if jwtKey == "" {
		// Use a default for development - must be overridden in production
		jwtKey = "dev-secret-key-change-in-production"
	}

	kafka := KafkaConfig{Topic: envOr("VERITAG_KAFKA_TOPIC", "veritag.audit")}
	if brokers := os.Getenv("VERITAG_KAFKA_BROKERS"); brokers != "" {
		kafka.Brokers = splitCSV(brokers)
	}

	return Server{
		Addr:        addr,
		AdminJWTKey: jwtKey,
		PostgresURL: os.Getenv("VERITAG_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("VERITAG_REDIS_URL"),
			PoolSize:     envInt("VERITAG_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VERITAG_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka:         kafka,
		Ledger:        collaborator("VERITAG_LEDGER", 10*time.Second),
		Scoring:       collaborator("VERITAG_SCORING", 15*time.Second),
		Extraction:    collaborator("VERITAG_EXTRACTION", 15*time.Second),
		SessionTTL:    5 * time.Minute,
		LockTTL:       10 * time.Second,
		ScanRatePerIP: envFloat("VERITAG_SCAN_RATE_PER_IP", 1),
	}
}

func collaborator(prefix string, timeout time.Duration) CollaboratorConfig {
	return CollaboratorConfig{
		BaseURL: os.Getenv(prefix + "_URL"),
		APIKey:  os.Getenv(prefix + "_API_KEY"),
		Timeout: timeout,
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
