package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Upstream UpstreamConfig
	Checkout CheckoutConfig
	Payments PaymentsConfig
	Cache    CacheConfig
	Receipts ReceiptsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds verification material for upstream-issued student tokens.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UpstreamConfig points at the external school API and the chat feed service.
type UpstreamConfig struct {
	BaseURL     string
	ChatBaseURL string
	Timeout     time.Duration
}

// CheckoutConfig tunes the hosted checkout session driver.
type CheckoutConfig struct {
	ScriptURL   string
	Currency    string
	DisplayName string
	SessionTTL  time.Duration
	GraceWindow time.Duration
}

// PaymentsConfig tunes pending-payment verification and reconciliation.
type PaymentsConfig struct {
	Staleness     time.Duration
	PollInterval  time.Duration
	PollAttempts  int
	VerifyWorkers int
}

// CacheConfig holds TTLs for upstream read-model caches.
type CacheConfig struct {
	TransactionsTTL time.Duration
	FeesTTL         time.Duration
	LockTTL         time.Duration
	EnrollmentsTTL  time.Duration
}

// ReceiptsConfig controls receipt file generation and signed downloads.
type ReceiptsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Upstream = UpstreamConfig{
		BaseURL:     v.GetString("UPSTREAM_BASE_URL"),
		ChatBaseURL: v.GetString("UPSTREAM_CHAT_BASE_URL"),
		Timeout:     parseDuration(v.GetString("UPSTREAM_TIMEOUT"), 10*time.Second),
	}

	cfg.Checkout = CheckoutConfig{
		ScriptURL:   v.GetString("CHECKOUT_SCRIPT_URL"),
		Currency:    v.GetString("CHECKOUT_CURRENCY"),
		DisplayName: v.GetString("CHECKOUT_DISPLAY_NAME"),
		SessionTTL:  parseDuration(v.GetString("CHECKOUT_SESSION_TTL"), 15*time.Minute),
		GraceWindow: parseDuration(v.GetString("CHECKOUT_GRACE_WINDOW"), 3*time.Second),
	}

	cfg.Payments = PaymentsConfig{
		Staleness:     parseDuration(v.GetString("PAYMENTS_PENDING_STALENESS"), 5*time.Minute),
		PollInterval:  parseDuration(v.GetString("PAYMENTS_POLL_INTERVAL"), 5*time.Second),
		PollAttempts:  v.GetInt("PAYMENTS_POLL_ATTEMPTS"),
		VerifyWorkers: v.GetInt("PAYMENTS_VERIFY_WORKERS"),
	}

	cfg.Cache = CacheConfig{
		TransactionsTTL: parseDuration(v.GetString("CACHE_TRANSACTIONS_TTL"), time.Minute),
		FeesTTL:         parseDuration(v.GetString("CACHE_FEES_TTL"), 10*time.Minute),
		LockTTL:         parseDuration(v.GetString("CACHE_LOCK_TTL"), 5*time.Minute),
		EnrollmentsTTL:  parseDuration(v.GetString("CACHE_ENROLLMENTS_TTL"), 5*time.Minute),
	}

	cfg.Receipts = ReceiptsConfig{
		Enabled:         v.GetBool("ENABLE_RECEIPTS"),
		StorageDir:      v.GetString("RECEIPTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("RECEIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RECEIPTS_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("RECEIPTS_CLEANUP_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "student_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:3006/api")
	v.SetDefault("UPSTREAM_CHAT_BASE_URL", "http://localhost:3030")
	v.SetDefault("UPSTREAM_TIMEOUT", "10s")

	v.SetDefault("CHECKOUT_SCRIPT_URL", "https://checkout.razorpay.com/v1/checkout.js")
	v.SetDefault("CHECKOUT_CURRENCY", "INR")
	v.SetDefault("CHECKOUT_DISPLAY_NAME", "ISML")
	v.SetDefault("CHECKOUT_SESSION_TTL", "15m")
	v.SetDefault("CHECKOUT_GRACE_WINDOW", "3s")

	v.SetDefault("PAYMENTS_PENDING_STALENESS", "5m")
	v.SetDefault("PAYMENTS_POLL_INTERVAL", "5s")
	v.SetDefault("PAYMENTS_POLL_ATTEMPTS", 5)
	v.SetDefault("PAYMENTS_VERIFY_WORKERS", 1)

	v.SetDefault("CACHE_TRANSACTIONS_TTL", "1m")
	v.SetDefault("CACHE_FEES_TTL", "10m")
	v.SetDefault("CACHE_LOCK_TTL", "5m")
	v.SetDefault("CACHE_ENROLLMENTS_TTL", "5m")

	v.SetDefault("ENABLE_RECEIPTS", true)
	v.SetDefault("RECEIPTS_STORAGE_DIR", "./receipts")
	v.SetDefault("RECEIPTS_SIGNED_URL_SECRET", "dev_receipts_secret")
	v.SetDefault("RECEIPTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("RECEIPTS_CLEANUP_INTERVAL", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
