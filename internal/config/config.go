package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Cart store backends selectable through CART_STORE.
const (
	CartStorePostgres = "postgres"
	CartStoreMongo    = "mongo"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string

	CartStore     string
	MongoURL      string
	MongoDatabase string

	CartTTL           time.Duration
	CartLockTTL       time.Duration
	LockRetryBackoff  time.Duration
	SettingsCacheTTL  time.Duration
	MenuCacheTTL      time.Duration
	IdempotencyTTL    time.Duration
	PromoRateLimit    string
	LedgerMaxAttempts int
	LedgerRetryBase   time.Duration
	StorageTimeout    time.Duration
	CurrencyCode      string
	BodyLimitBytes    int64
	CartPurgeInterval time.Duration
	AuditEnabled      bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CartStore:          strings.ToLower(valueOrDefault(k.String("CART_STORE"), CartStorePostgres)),
		MongoURL:           strings.TrimSpace(k.String("MONGO_URL")),
		MongoDatabase:      valueOrDefault(k.String("MONGO_DATABASE"), "resto"),
		CartTTL:            parseDuration(k.String("CART_TTL"), "168h"),
		CartLockTTL:        parseDuration(k.String("CART_LOCK_TTL"), "5s"),
		LockRetryBackoff:   parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		SettingsCacheTTL:   parseDuration(k.String("SETTINGS_CACHE_TTL"), "30s"),
		MenuCacheTTL:       parseDuration(k.String("MENU_CACHE_TTL"), "5m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		PromoRateLimit:     valueOrDefault(k.String("PROMO_RATE_LIMIT"), "20-M"),
		LedgerMaxAttempts:  parseInt(k.String("LEDGER_MAX_ATTEMPTS"), 3),
		LedgerRetryBase:    parseDuration(k.String("LEDGER_RETRY_BASE"), "20ms"),
		StorageTimeout:     parseDuration(k.String("STORAGE_TIMEOUT"), "3s"),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "INR")),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		CartPurgeInterval:  parseDuration(k.String("CART_PURGE_INTERVAL"), "30m"),
		AuditEnabled:       parseBool(k.String("AUDIT_ENABLED"), true),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.CartStore {
	case CartStorePostgres:
	case CartStoreMongo:
		if cfg.MongoURL == "" {
			return nil, errors.New("MONGO_URL is required when CART_STORE=mongo")
		}
	default:
		return nil, fmt.Errorf("unsupported CART_STORE %q", cfg.CartStore)
	}
	if cfg.LedgerMaxAttempts < 1 {
		cfg.LedgerMaxAttempts = 1
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
