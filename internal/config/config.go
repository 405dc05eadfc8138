// Package config loads application configuration from environment variables,
// with .env support for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/clearspend/reconciler/internal/reconcile"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port     string
	LogLevel string

	// Storage
	GCPProjectID string
	BQDataset    string

	// Reporting
	ReportsBucket string

	// Job queue settings
	JobQueueSize   int
	JobWorkerCount int

	// Matching overrides. Empty means use the built-in defaults.
	RefundKeywords       []string
	BounceKeywords       []string
	MarketplaceMerchants []string
	TransferWindowDays   int
	RefundWindowDays     int
	BounceWindowDays     int
}

// Load loads configuration from environment variables or a .env file.
func Load() *AppConfig {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			log.Println("Info: No .env file found. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", err)
		}
	}

	defaults := reconcile.DefaultConfig()

	return &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GCPProjectID: getEnv("GCP_PROJECT_ID", "clearspend-prod-382017"),
		BQDataset:    getEnv("BQ_DATASET", "clearspend"),

		ReportsBucket: getEnv("REPORTS_BUCKET", ""),

		JobQueueSize:   getEnvAsInt("JOB_QUEUE_SIZE", 100),
		JobWorkerCount: getEnvAsInt("JOB_WORKER_COUNT", 5),

		RefundKeywords:       getEnvAsList("REFUND_KEYWORDS"),
		BounceKeywords:       getEnvAsList("BOUNCE_KEYWORDS"),
		MarketplaceMerchants: getEnvAsList("MARKETPLACE_MERCHANTS"),
		TransferWindowDays:   getEnvAsInt("TRANSFER_WINDOW_DAYS", defaults.TransferWindowDays),
		RefundWindowDays:     getEnvAsInt("REFUND_WINDOW_DAYS", defaults.RefundWindowDays),
		BounceWindowDays:     getEnvAsInt("BOUNCE_WINDOW_DAYS", defaults.BounceWindowDays),
	}
}

// ReconcileConfig builds the engine's matching config, applying any overrides
// set in the environment on top of the defaults.
func (c *AppConfig) ReconcileConfig() reconcile.Config {
	cfg := reconcile.DefaultConfig()

	if len(c.RefundKeywords) > 0 {
		cfg.RefundKeywords = c.RefundKeywords
	}
	if len(c.BounceKeywords) > 0 {
		cfg.BounceKeywords = c.BounceKeywords
	}
	if len(c.MarketplaceMerchants) > 0 {
		cfg.MarketplaceMerchants = c.MarketplaceMerchants
	}
	if c.TransferWindowDays > 0 {
		cfg.TransferWindowDays = c.TransferWindowDays
	}
	if c.RefundWindowDays > 0 {
		cfg.RefundWindowDays = c.RefundWindowDays
	}
	if c.BounceWindowDays > 0 {
		cfg.BounceWindowDays = c.BounceWindowDays
	}

	return cfg
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsList retrieves a comma-separated environment variable as a slice.
// Returns nil when unset or empty.
func getEnvAsList(key string) []string {
	valueStr := getEnv(key, "")
	if strings.TrimSpace(valueStr) == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	var values []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
