package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	base "github.com/MedamoniSharan/CryptoAiTrade/libs/config"
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RateLimitRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RateLimitConfig struct {
	LoginLimit int
	Window     time.Duration
	Redis      RateLimitRedisConfig
}

type KafkaTopics struct {
	InvestmentsSubmitted string
	InvestmentsUpdated   string
	DLQ                  string
}

type KafkaConfig struct {
	Brokers []string
	Topics  KafkaTopics
}

type ProofStoreConfig struct {
	// Driver is "postgres" or "s3".
	Driver   string
	S3Bucket string
	S3Region string
	// MaxBytes bounds the decoded proof size accepted at submission.
	MaxBytes int
}

type Config struct {
	App             base.AppConfig
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Argon2          Argon2Params
	DB              DBConfig
	RateLimit       RateLimitConfig
	Kafka           KafkaConfig
	ProofStore      ProofStoreConfig
}

func Load() (*Config, error) {
	appCfg, err := base.Load(os.Getenv("CAI_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:             *appCfg,
		JWTSecret:       envString("CAI_JWT_SECRET", ""),
		JWTIssuer:       envString("CAI_JWT_ISSUER", "cryptoaitrade"),
		AccessTokenTTL:  envDuration("CAI_ACCESS_TOKEN_TTL", 1*time.Hour),
		RefreshTokenTTL: envDuration("CAI_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		Argon2: Argon2Params{
			Memory:      uint32(envInt("CAI_ARGON2_MEMORY", 64*1024)),
			Iterations:  uint32(envInt("CAI_ARGON2_ITERATIONS", 3)),
			Parallelism: uint8(envInt("CAI_ARGON2_PARALLELISM", 2)),
			SaltLength:  uint32(envInt("CAI_ARGON2_SALT_LENGTH", 16)),
			KeyLength:   uint32(envInt("CAI_ARGON2_KEY_LENGTH", 32)),
		},
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "cryptoaitrade"),
			User:     envString("POSTGRES_USER", "cryptoai"),
			Password: envString("POSTGRES_PASSWORD", "cryptoai"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		RateLimit: RateLimitConfig{
			LoginLimit: envInt("CAI_LOGIN_RATE_LIMIT", 10),
			Window:     envDuration("CAI_LOGIN_RATE_WINDOW", 1*time.Minute),
			Redis: RateLimitRedisConfig{
				Addr:     envString("CAI_RATE_LIMIT_REDIS_ADDR", ""),
				Password: envString("CAI_RATE_LIMIT_REDIS_PASSWORD", ""),
				DB:       envInt("CAI_RATE_LIMIT_REDIS_DB", 0),
				Prefix:   envString("CAI_RATE_LIMIT_REDIS_PREFIX", "cai:auth:rl:"),
			},
		},
		Kafka: KafkaConfig{
			Brokers: envList("CAI_KAFKA_BROKERS"),
			Topics: KafkaTopics{
				InvestmentsSubmitted: envString("CAI_KAFKA_TOPIC_INVESTMENTS_SUBMITTED", "investments.submitted"),
				InvestmentsUpdated:   envString("CAI_KAFKA_TOPIC_INVESTMENTS_UPDATED", "investments.updated"),
				DLQ:                  envString("CAI_KAFKA_TOPIC_DLQ", "investments.dlq"),
			},
		},
		ProofStore: ProofStoreConfig{
			Driver:   envString("CAI_PROOF_STORE_DRIVER", "postgres"),
			S3Bucket: envString("CAI_PROOF_S3_BUCKET", ""),
			S3Region: envString("CAI_PROOF_S3_REGION", ""),
			MaxBytes: envInt("CAI_PROOF_MAX_BYTES", 10<<20),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("CAI_JWT_SECRET must be set")
	}
	if cfg.ProofStore.Driver != "postgres" && cfg.ProofStore.Driver != "s3" {
		return nil, fmt.Errorf("CAI_PROOF_STORE_DRIVER must be postgres or s3")
	}
	if cfg.ProofStore.Driver == "s3" && cfg.ProofStore.S3Bucket == "" {
		return nil, fmt.Errorf("CAI_PROOF_S3_BUCKET must be set for the s3 proof store")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
