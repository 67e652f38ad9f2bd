// Package config loads the Kestrel configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Load builds the configuration from defaults overridden by KESTREL_*
// environment variables. A .env file in the working directory is loaded
// first if present.
func Load() *domain.Config {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := domain.DefaultConfig()

	cfg.Server.Host = getEnv("KESTREL_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("KESTREL_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvInt("KESTREL_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvInt("KESTREL_WRITE_TIMEOUT", cfg.Server.WriteTimeout)

	cfg.Repository.Driver = getEnv("KESTREL_DB_DRIVER", cfg.Repository.Driver)
	cfg.Repository.SQLitePath = getEnv("KESTREL_SQLITE_PATH", cfg.Repository.SQLitePath)
	cfg.Repository.PostgresHost = getEnv("KESTREL_PG_HOST", cfg.Repository.PostgresHost)
	cfg.Repository.PostgresPort = getEnvInt("KESTREL_PG_PORT", cfg.Repository.PostgresPort)
	cfg.Repository.PostgresUser = getEnv("KESTREL_PG_USER", cfg.Repository.PostgresUser)
	cfg.Repository.PostgresPassword = getEnv("KESTREL_PG_PASSWORD", cfg.Repository.PostgresPassword)
	cfg.Repository.PostgresDB = getEnv("KESTREL_PG_DB", cfg.Repository.PostgresDB)
	cfg.Repository.PostgresSSLMode = getEnv("KESTREL_PG_SSLMODE", cfg.Repository.PostgresSSLMode)

	cfg.Cache.Type = getEnv("KESTREL_CACHE", cfg.Cache.Type)
	cfg.Cache.RedisAddr = getEnv("KESTREL_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = getEnv("KESTREL_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = getEnvInt("KESTREL_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.EnableTwoPhase = getEnvBool("KESTREL_CACHE_TWO_PHASE", cfg.Cache.EnableTwoPhase)
	cfg.Cache.LocalMaxSize = getEnvInt("KESTREL_CACHE_MAX_SIZE", cfg.Cache.LocalMaxSize)
	cfg.Cache.RuleSetTTL = getEnvDuration("KESTREL_RULE_TTL", cfg.Cache.RuleSetTTL)

	cfg.EventBus.Type = getEnv("KESTREL_BUS", cfg.EventBus.Type)
	cfg.EventBus.NATSUrl = getEnv("KESTREL_NATS_URL", cfg.EventBus.NATSUrl)
	cfg.EventBus.NATSToken = getEnv("KESTREL_NATS_TOKEN", cfg.EventBus.NATSToken)

	cfg.Auth.Secret = getEnv("KESTREL_AUTH_SECRET", cfg.Auth.Secret)
	cfg.Auth.TokenTTL = getEnvInt("KESTREL_TOKEN_TTL", cfg.Auth.TokenTTL)

	cfg.SMTP.Host = getEnv("KESTREL_SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvInt("KESTREL_SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getEnv("KESTREL_SMTP_USER", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("KESTREL_SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("KESTREL_SMTP_FROM", cfg.SMTP.From)

	cfg.Logging.Level = getEnv("KESTREL_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("KESTREL_LOG_FORMAT", cfg.Logging.Format)

	cfg.Tracing.Enabled = getEnvBool("KESTREL_TRACING", cfg.Tracing.Enabled)
	cfg.Tracing.ServiceName = getEnv("KESTREL_SERVICE_NAME", cfg.Tracing.ServiceName)

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
