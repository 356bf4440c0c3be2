package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // date buckets must resolve without a system zoneinfo

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Booking engine configuration
	Booking BookingConfig

	// Channel worker credentials (SMS gateway, chat-bot)
	Channels ChannelConfig

	// Capacity event delivery
	Events EventsConfig

	// Redis configuration
	Redis RedisConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Audit trail retention
	Audit AuditConfig

	// Tracing configuration
	Telemetry TelemetryConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver             string // "pgx" or "postgres" (lib/pq)
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	MigrationsPath     string
}

// JWTConfig holds the secret used to verify access tokens issued by the auth service
type JWTConfig struct {
	Secret string
	Issuer string
}

// BookingConfig holds the reservation engine tunables
type BookingConfig struct {
	TransactionTimeout time.Duration
	PendingWindow      time.Duration
	LowSlotThreshold   int
	CommissionRate     decimal.Decimal
	VATRate            decimal.Decimal
	Timezone           string
	ReaperSchedule     string
	ReaperBatchSize    int
	EventBufferSize    int
}

// ChannelConfig holds bcrypt hashes of the API keys used by channel workers
type ChannelConfig struct {
	SMSKeyHash     string
	ChatbotKeyHash string
}

// EventsConfig selects where capacity-changed events are published
type EventsConfig struct {
	Backend      string // "log", "kafka" or "redis"
	KafkaBrokers []string
	KafkaTopic   string
	RedisChannel string
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds rate limiting configuration for the web channel
type RateLimitConfig struct {
	Enabled       bool
	Requests      int
	WindowSeconds int
}

// AuditConfig holds audit log retention settings
type AuditConfig struct {
	Retention       time.Duration
	CleanupSchedule string
}

// TelemetryConfig holds OpenTelemetry exporter settings
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	commissionRate, err := getEnvAsDecimal("BOOKING_COMMISSION_RATE", "0.05")
	if err != nil {
		return nil, err
	}
	vatRate, err := getEnvAsDecimal("BOOKING_VAT_RATE", "0.15")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:             getEnv("DATABASE_DRIVER", "pgx"),
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 20),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			MigrationsPath:     getEnv("DATABASE_MIGRATIONS_PATH", "file://migrations/postgres"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", "smarttransit-sms-auth"),
		},
		Booking: BookingConfig{
			TransactionTimeout: getEnvAsDuration("BOOKING_TRANSACTION_TIMEOUT", 10*time.Second),
			PendingWindow:      getEnvAsDuration("BOOKING_PENDING_WINDOW", 15*time.Minute),
			LowSlotThreshold:   getEnvAsInt("BOOKING_LOW_SLOT_THRESHOLD", 10),
			CommissionRate:     commissionRate,
			VATRate:            vatRate,
			Timezone:           getEnv("BOOKING_TIMEZONE", "Asia/Colombo"),
			ReaperSchedule:     getEnv("BOOKING_REAPER_SCHEDULE", "@every 1m"),
			ReaperBatchSize:    getEnvAsInt("BOOKING_REAPER_BATCH_SIZE", 100),
			EventBufferSize:    getEnvAsInt("BOOKING_EVENT_BUFFER_SIZE", 256),
		},
		Channels: ChannelConfig{
			SMSKeyHash:     getEnv("CHANNEL_SMS_KEY_HASH", ""),
			ChatbotKeyHash: getEnv("CHANNEL_CHATBOT_KEY_HASH", ""),
		},
		Events: EventsConfig{
			Backend:      getEnv("EVENTS_BACKEND", "log"),
			KafkaBrokers: getEnvAsSlice("EVENTS_KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnv("EVENTS_KAFKA_TOPIC", "trip.capacity_changed"),
			RedisChannel: getEnv("EVENTS_REDIS_CHANNEL", "trip.capacity_changed"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Audit: AuditConfig{
			Retention:       time.Duration(getEnvAsInt("AUDIT_RETENTION_DAYS", 365)) * 24 * time.Hour,
			CleanupSchedule: getEnv("AUDIT_CLEANUP_SCHEDULE", "0 30 3 * * *"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "booking-engine"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Channel-Key"}),
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

	if c.Database.Driver != "pgx" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'pgx' or 'postgres')", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Booking.TransactionTimeout <= 0 {
		return fmt.Errorf("BOOKING_TRANSACTION_TIMEOUT must be positive")
	}

	if c.Booking.PendingWindow <= 0 {
		return fmt.Errorf("BOOKING_PENDING_WINDOW must be positive")
	}

	if c.Booking.LowSlotThreshold < 0 {
		return fmt.Errorf("BOOKING_LOW_SLOT_THRESHOLD cannot be negative")
	}

	if c.Booking.CommissionRate.IsNegative() || c.Booking.VATRate.IsNegative() {
		return fmt.Errorf("commission and VAT rates cannot be negative")
	}

	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.Booking.Timezone, err)
	}

	switch c.Events.Backend {
	case "log":
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 || c.Events.KafkaTopic == "" {
			return fmt.Errorf("EVENTS_KAFKA_BROKERS and EVENTS_KAFKA_TOPIC are required for the kafka backend")
		}
	case "redis":
		if c.Redis.Addr == "" || c.Events.RedisChannel == "" {
			return fmt.Errorf("REDIS_ADDR and EVENTS_REDIS_CHANNEL are required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid EVENTS_BACKEND: %s (must be 'log', 'kafka' or 'redis')", c.Events.Backend)
	}

	if c.RateLimit.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when rate limiting is enabled")
	}

	return nil
}

// Location returns the timezone used to compute resource date buckets
func (b BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

// getEnvAsDuration accepts Go duration strings ("10s", "15m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDecimal returns an error instead of falling back to the default
func getEnvAsDecimal(key string, defaultValue string) (decimal.Decimal, error) {
	valueStr := getEnv(key, defaultValue)
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value for %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
