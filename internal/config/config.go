package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the catalog sync service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// Sheet feed
	SheetFeedURL string

	// Warehouse inventory API
	WarehouseBaseURL   string
	WarehouseAccessKey string
	WarehouseSecretKey string

	// Location search API
	LocationBaseURL string
	LocationAPIKey  string

	// Sync settings
	SyncTimeout   time.Duration
	SourceTimeout time.Duration

	// Caching
	CacheTTL time.Duration

	// CORS
	AllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() *Config {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "postgres")
		dbName := getEnv("DB_NAME", "catalog_sync")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	config := &Config{
		Port:        getEnv("PORT", "8086"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: databaseURL,

		SheetFeedURL: getEnv("SHEET_FEED_URL", ""),

		WarehouseBaseURL:   getEnv("WAREHOUSE_API_URL", ""),
		WarehouseAccessKey: getEnv("WAREHOUSE_ACCESS_KEY", ""),
		WarehouseSecretKey: getEnv("WAREHOUSE_SECRET_KEY", ""),

		LocationBaseURL: getEnv("LOCATION_API_URL", ""),
		LocationAPIKey:  getEnv("LOCATION_API_KEY", ""),

		SyncTimeout:   getEnvAsDuration("SYNC_TIMEOUT", 30*time.Minute),
		SourceTimeout: getEnvAsDuration("SOURCE_TIMEOUT", 30*time.Second),

		CacheTTL: getEnvAsDuration("CACHE_TTL", 10*time.Minute),

		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "*")},
	}

	if config.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if config.SheetFeedURL == "" {
		log.Println("Warning: SHEET_FEED_URL not set, sheet sync will be unavailable")
	}
	if config.WarehouseBaseURL == "" {
		log.Println("Warning: WAREHOUSE_API_URL not set, warehouse sync will be unavailable")
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
