package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	Ledger    LedgerConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Environment  string
	LogLevel     string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxOpen  int
	MaxIdle  int
	MaxLife  time.Duration
	LogSQL   bool
}

type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          string
	Password      string
	Database      int
	PoolSize      int
	StatsCacheTTL time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type TelemetryConfig struct {
	ServiceName    string
	OTLPEndpoint   string
	ExportInterval time.Duration
}

// LedgerConfig holds settings of the trade and counterparty engines
type LedgerConfig struct {
	// Store selects the backing store: "postgres" or "memory"
	Store           string
	SeedSampleData  bool
	DefaultPageSize int
	MaxPageSize     int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	environment := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  environment,
			LogLevel:     getEnv("LOG_LEVEL", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "trading_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxOpen:  getIntEnv("DB_MAX_OPEN", 25),
			MaxIdle:  getIntEnv("DB_MAX_IDLE", 5),
			MaxLife:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			LogSQL:   getBoolEnv("DB_LOG_SQL", false),
		},
		Redis: RedisConfig{
			Enabled:       getBoolEnv("REDIS_ENABLED", false),
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnv("REDIS_PORT", "6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			Database:      getIntEnv("REDIS_DATABASE", 0),
			PoolSize:      getIntEnv("REDIS_POOL_SIZE", 10),
			StatsCacheTTL: getDurationEnv("STATS_CACHE_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Window:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		},
		Telemetry: TelemetryConfig{
			ServiceName:    getEnv("SERVICE_NAME", "trade-ledger"),
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ExportInterval: getDurationEnv("METRICS_EXPORT_INTERVAL", 30*time.Second),
		},
		Ledger: LedgerConfig{
			Store:           getEnv("LEDGER_STORE", "postgres"),
			SeedSampleData:  getBoolEnv("SEED_SAMPLE_DATA", environment == "development"),
			DefaultPageSize: getIntEnv("DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:     getIntEnv("MAX_PAGE_SIZE", 500),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var problems []string

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		problems = append(problems, fmt.Sprintf("SERVER_PORT %q is not a number", c.Server.Port))
	}
	if c.Server.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.Server.LogLevel); err != nil {
			problems = append(problems, fmt.Sprintf("LOG_LEVEL %q is not a valid level", c.Server.LogLevel))
		}
	}
	switch c.Ledger.Store {
	case "postgres", "memory":
	default:
		problems = append(problems, fmt.Sprintf("LEDGER_STORE %q must be postgres or memory", c.Ledger.Store))
	}
	if c.Database.MaxOpen <= 0 || c.Database.MaxIdle < 0 {
		problems = append(problems, "DB_MAX_OPEN must be positive and DB_MAX_IDLE non-negative")
	}
	if c.Redis.PoolSize <= 0 {
		problems = append(problems, "REDIS_POOL_SIZE must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		problems = append(problems, "RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if c.Ledger.DefaultPageSize <= 0 || c.Ledger.MaxPageSize < c.Ledger.DefaultPageSize {
		problems = append(problems, "DEFAULT_PAGE_SIZE must be positive and not exceed MAX_PAGE_SIZE")
	}
	if c.Telemetry.OTLPEndpoint != "" && c.Telemetry.ExportInterval <= 0 {
		problems = append(problems, "METRICS_EXPORT_INTERVAL must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (c *Config) GetDatabaseURL() string {
	return "postgres://" + c.Database.User + ":" + c.Database.Password + "@" + c.Database.Host + ":" + c.Database.Port + "/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}

func (c *Config) GetRedisURL() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
