// Package config builds process configuration from the environment so main
// stays lean. All secrets (JWT signing key included) travel through this
// struct; nothing reads the environment after startup.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs at wiring time.
type Config struct {
	Addr string

	// DatabaseURL enables the postgres-backed stores. When empty, the server
	// falls back to in-memory stores (dev and tests).
	DatabaseURL string

	// RedisURL enables the shared token revocation list for logout. When
	// empty, revocation is process-local.
	RedisURL string

	// KafkaSeeds enables audit trail fan-out to Kafka. Comma-separated
	// broker addresses; empty disables the publisher.
	KafkaSeeds string
	AuditTopic string

	JWTSigningKey string
	TokenTTL      time.Duration
	BcryptCost    int

	// UploadDir is the root of the filesystem blob store for bill documents.
	UploadDir string

	// StrictAllocationParsing rejects malformed district-allocation payloads
	// with a validation error instead of degrading them to an empty list.
	StrictAllocationParsing bool

	// SeedDemoData loads the demo users and bills on an empty store.
	SeedDemoData bool
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                    getEnv("BVAS_ADDR", ":8080"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		KafkaSeeds:              os.Getenv("KAFKA_SEEDS"),
		AuditTopic:              getEnv("AUDIT_TOPIC", "bvas.audit"),
		JWTSigningKey:           os.Getenv("JWT_SIGNING_KEY"),
		TokenTTL:                getDuration("TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:              getInt("BCRYPT_COST", 10),
		UploadDir:               getEnv("UPLOAD_DIR", "uploads"),
		StrictAllocationParsing: os.Getenv("STRICT_ALLOCATIONS") == "true",
		SeedDemoData:            os.Getenv("SEED_DEMO_DATA") == "true",
	}
	if cfg.JWTSigningKey == "" {
		// Dev fallback only; production deployments must set JWT_SIGNING_KEY.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
