package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Places      PlacesConfig
	Search      SearchConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// PlacesConfig configures the open-web supplemental lookup.
type PlacesConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
	CacheTTLSeconds   int
}

// SearchConfig holds the hybrid search policy and dedup thresholds.
type SearchConfig struct {
	SupplementalThreshold  int
	MaxSupplementalResults int
	SupplementalTimeout    time.Duration
	EnrichmentConcurrency  int
	EnrichmentTimeout      time.Duration
	DefaultRadiusMiles     float64
	VerifiedOnly           bool

	DedupNameThreshold    float64
	DedupAddressThreshold float64
	DedupProximityMiles   float64
	DedupWebsiteThreshold float64
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),

			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "soberbookings"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Places: PlacesConfig{
			APIKey:            getEnv("PLACES_API_KEY", ""),
			BaseURL:           getEnv("PLACES_BASE_URL", "https://places.googleapis.com/v1"),
			RequestsPerSecond: getEnvAsFloat("PLACES_REQUESTS_PER_SECOND", 5),
			CacheTTLSeconds:   getEnvAsInt("PLACES_CACHE_TTL_SECONDS", 60*60*24),
		},
		Search: SearchConfig{
			SupplementalThreshold:  getEnvAsInt("SEARCH_SUPPLEMENTAL_THRESHOLD", 5),
			MaxSupplementalResults: getEnvAsInt("SEARCH_MAX_SUPPLEMENTAL_RESULTS", 10),
			SupplementalTimeout:    getEnvAsDuration("SEARCH_SUPPLEMENTAL_TIMEOUT", 8*time.Second),
			EnrichmentConcurrency:  getEnvAsInt("SEARCH_ENRICHMENT_CONCURRENCY", 4),
			EnrichmentTimeout:      getEnvAsDuration("SEARCH_ENRICHMENT_TIMEOUT", 3*time.Second),
			DefaultRadiusMiles:     getEnvAsFloat("SEARCH_DEFAULT_RADIUS_MILES", 50),
			VerifiedOnly:           getEnvAsBool("SEARCH_VERIFIED_ONLY", false),

			DedupNameThreshold:    getEnvAsFloat("DEDUP_NAME_THRESHOLD", 0.8),
			DedupAddressThreshold: getEnvAsFloat("DEDUP_ADDRESS_THRESHOLD", 0.7),
			DedupProximityMiles:   getEnvAsFloat("DEDUP_PROXIMITY_MILES", 0.5),
			DedupWebsiteThreshold: getEnvAsFloat("DEDUP_WEBSITE_THRESHOLD", 0.8),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "soberbookings-search"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects search settings the orchestrator cannot run with.
func (c *SearchConfig) Validate() error {
	if c.SupplementalThreshold < 0 {
		return fmt.Errorf("SEARCH_SUPPLEMENTAL_THRESHOLD must not be negative")
	}
	if c.MaxSupplementalResults <= 0 {
		return fmt.Errorf("SEARCH_MAX_SUPPLEMENTAL_RESULTS must be positive")
	}
	if c.DefaultRadiusMiles <= 0 {
		return fmt.Errorf("SEARCH_DEFAULT_RADIUS_MILES must be positive")
	}
	if c.EnrichmentConcurrency <= 0 {
		return fmt.Errorf("SEARCH_ENRICHMENT_CONCURRENCY must be positive")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
