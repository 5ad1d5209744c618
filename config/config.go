package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	Auth     AuthConfig
	Payment  PaymentConfig
	Storage  StorageConfig
	App      AppConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	DSN      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type FirebaseConfig struct {
	CredentialsPath string
}

// AuthConfig carries the role-resolution policy. RoleLookupTimeout bounds
// the authoritative profile lookup; RoleCacheTTL bounds how long a
// last-confirmed role may be served without revalidation.
type AuthConfig struct {
	RoleLookupTimeout time.Duration
	RoleCacheTTL      time.Duration
	SignupRatePerMin  int
}

type PaymentConfig struct {
	BaseURL           string
	APIKey            string
	WebhookSecret     string
	SuccessURL        string
	CancelURL         string
	ReconcileSchedule string
	ConfirmTTL        time.Duration
}

type StorageConfig struct {
	BaseURL string
	APIKey  string
	Bucket  string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnvAsList("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		Auth: AuthConfig{
			RoleLookupTimeout: getEnvAsDuration("AUTH_ROLE_LOOKUP_TIMEOUT", 3*time.Second),
			RoleCacheTTL:      getEnvAsDuration("AUTH_ROLE_CACHE_TTL", 15*time.Minute),
			SignupRatePerMin:  getEnvAsInt("SIGNUP_RATE_PER_MIN", 5),
		},
		Payment: PaymentConfig{
			BaseURL:           getEnv("PAYMENT_BASE_URL", ""),
			APIKey:            getEnv("PAYMENT_API_KEY", ""),
			WebhookSecret:     getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			SuccessURL:        getEnv("PAYMENT_SUCCESS_URL", "http://localhost:3000/payment/success"),
			CancelURL:         getEnv("PAYMENT_CANCEL_URL", "http://localhost:3000/payment/cancel"),
			ReconcileSchedule: getEnv("PAYMENT_RECONCILE_CRON", "0 0 * * * *"),
			ConfirmTTL:        getEnvAsDuration("TRANSITION_CONFIRM_TTL", 2*time.Minute),
		},
		Storage: StorageConfig{
			BaseURL: getEnv("STORAGE_BASE_URL", ""),
			APIKey:  getEnv("STORAGE_API_KEY", ""),
			Bucket:  getEnv("STORAGE_BUCKET", "project-images"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	if c.Auth.RoleLookupTimeout <= 0 {
		return fmt.Errorf("AUTH_ROLE_LOOKUP_TIMEOUT must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key, defaultValue string) []string {
	valueStr := getEnv(key, defaultValue)
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
