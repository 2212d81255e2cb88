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

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (draft store)
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Upstream tour backend
	Backend BackendConfig

	// Payment polling configuration
	Payment PaymentConfig

	// Checkout draft configuration
	Checkout CheckoutConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string // development, staging, production
	LogLevel        string // debug, info, warn, error
	ShutdownTimeout time.Duration
	RequestLogging  bool
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// RedisConfig holds the draft cache connection. An empty URL selects the
// in-memory draft store.
type RedisConfig struct {
	URL       string
	KeyPrefix string
	PoolSize  int
}

// JWTConfig holds the storefront access token settings
type JWTConfig struct {
	Secret string
	Issuer string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// BackendConfig holds the upstream tour REST API settings
type BackendConfig struct {
	BaseURL      string
	Timeout      time.Duration
	ServiceToken string // used for status polling outside a user request
}

// PaymentConfig holds payment confirmation polling settings
type PaymentConfig struct {
	PollInterval    time.Duration // time between two status checks
	Timeout         time.Duration // ceiling before a PENDING session is failed
	RedirectDelay   time.Duration // delay before redirecting after SUCCESS
	EnabledGateways []string
}

// CheckoutConfig holds booking draft settings
type CheckoutConfig struct {
	DraftTTL      time.Duration
	SweepInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestLogging:  getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "checkout:draft:"),
			PoolSize:  getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", "smarttravel-storefront"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Idempotency-Key"}),
		},
		Backend: BackendConfig{
			BaseURL:      strings.TrimRight(getEnv("BACKEND_BASE_URL", ""), "/"),
			Timeout:      getEnvAsDuration("BACKEND_TIMEOUT", 30*time.Second),
			ServiceToken: getEnv("BACKEND_SERVICE_TOKEN", ""),
		},
		Payment: PaymentConfig{
			PollInterval:    getEnvAsDuration("PAYMENT_POLL_INTERVAL", 3*time.Second),
			Timeout:         getEnvAsDuration("PAYMENT_TIMEOUT", 300*time.Second),
			RedirectDelay:   getEnvAsDuration("PAYMENT_REDIRECT_DELAY", 3*time.Second),
			EnabledGateways: getEnvAsSlice("PAYMENT_GATEWAYS", []string{"vnpay", "momo", "payable", "stripe"}),
		},
		Checkout: CheckoutConfig{
			DraftTTL:      getEnvAsDuration("CHECKOUT_DRAFT_TTL", 2*time.Hour),
			SweepInterval: getEnvAsDuration("CHECKOUT_SWEEP_INTERVAL", 5*time.Minute),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}

	if c.Payment.PollInterval <= 0 || c.Payment.Timeout <= 0 {
		return fmt.Errorf("PAYMENT_POLL_INTERVAL and PAYMENT_TIMEOUT must be positive")
	}

	if c.Payment.PollInterval >= c.Payment.Timeout {
		return fmt.Errorf("PAYMENT_POLL_INTERVAL (%s) must be shorter than PAYMENT_TIMEOUT (%s)",
			c.Payment.PollInterval, c.Payment.Timeout)
	}

	if c.Checkout.DraftTTL <= 0 || c.Checkout.SweepInterval <= 0 {
		return fmt.Errorf("CHECKOUT_DRAFT_TTL and CHECKOUT_SWEEP_INTERVAL must be positive")
	}

	if len(c.Payment.EnabledGateways) == 0 {
		return fmt.Errorf("PAYMENT_GATEWAYS must list at least one gateway")
	}

	return nil
}

// IsProduction returns true when running in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("3s", "5m") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
