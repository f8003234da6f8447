// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir            string // Base directory for the runs database (always absolute)
	LogLevel           string
	Port               int
	DevMode            bool
	BordereauWorkers   int    // Concurrent rows per bordereau; 0 means one per CPU
	RunRetentionDays   int    // Stored runs older than this are pruned; 0 disables pruning
	RunCleanupSchedule string // Cron spec (with seconds) for the pruning job
	MaxRequestBodyMB   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CESSION_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("HTTP_PORT", 8080),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		BordereauWorkers:   getEnvAsInt("BORDEREAU_WORKERS", 0),
		RunRetentionDays:   getEnvAsInt("RUN_RETENTION_DAYS", 90),
		RunCleanupSchedule: getEnv("RUN_CLEANUP_SCHEDULE", "0 0 3 * * *"),
		MaxRequestBodyMB:   getEnvAsInt("MAX_REQUEST_BODY_MB", 32),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configured values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.Port)
	}
	if c.BordereauWorkers < 0 {
		return fmt.Errorf("invalid BORDEREAU_WORKERS: %d", c.BordereauWorkers)
	}
	if c.RunRetentionDays < 0 {
		return fmt.Errorf("invalid RUN_RETENTION_DAYS: %d", c.RunRetentionDays)
	}
	if c.MaxRequestBodyMB <= 0 {
		return fmt.Errorf("invalid MAX_REQUEST_BODY_MB: %d", c.MaxRequestBodyMB)
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.RunCleanupSchedule); err != nil {
		return fmt.Errorf("invalid RUN_CLEANUP_SCHEDULE %q: %w", c.RunCleanupSchedule, err)
	}
	return nil
}

// RunsDBPath is the location of the runs database
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// Helper functions
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
