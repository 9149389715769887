package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	devJWTSecret = "dev-secret-change-me"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	DBURL       string
	DBMaxConns  int
	StoreDriver string

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// RedisNamespace prefixes every cache key.
	RedisNamespace string
	RedisPoolSize  int

	PrincipalCacheTTL time.Duration

	OTLPEndpoint       string
	ServiceName        string
	TraceSamplePercent int

	CORSAllowedOrigins []string
	LoginRatePerMinute int

	HousekeepingInterval time.Duration
	HealthPort           int
}

// Load reads the environment, after merging an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:      getEnv("APP_ENV", "dev"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DBURL:       getEnv("DATABASE_URL", buildDBURL()),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		AccessTTL:  time.Duration(getEnvInt("JWT_ACCESS_TTL_MINUTES", 60)) * time.Minute,
		RefreshTTL: time.Duration(getEnvInt("JWT_REFRESH_TTL_DAYS", 7)) * 24 * time.Hour,

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RedisNamespace: getEnv("REDIS_NAMESPACE", "taskhub"),
		RedisPoolSize:  getEnvInt("REDIS_POOL_SIZE", 0),

		PrincipalCacheTTL: time.Duration(getEnvInt("PRINCIPAL_CACHE_TTL_SECONDS", 30)) * time.Second,

		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:        getEnv("OTEL_SERVICE_NAME", "taskhub"),
		TraceSamplePercent: getEnvInt("OTEL_TRACE_SAMPLE_PERCENT", 100),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),

		HousekeepingInterval: getEnvDuration("HOUSEKEEPING_INTERVAL", 10*time.Minute),
		HealthPort:           getEnvInt("HEALTH_PORT", 8081),
	}
}

// Validate rejects settings that are only acceptable for local development.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		if c.Env != "dev" {
			errs = append(errs, errors.New("JWT_SECRET is required outside dev"))
		}
		c.JWTSecret = devJWTSecret
	}

	switch c.StoreDriver {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, errors.New("STORE_DRIVER must be postgres or memory"))
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}

	return errors.Join(errs...)
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "taskhub")
	pass := getEnv("DB_PASSWORD", "taskhub")
	name := getEnv("DB_NAME", "taskhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Default().Warn("invalid integer env var, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Default().Warn("invalid duration env var, using default", "key", key, "value", v)
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
