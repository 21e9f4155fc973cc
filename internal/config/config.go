package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server ServerConfig
	Limits LimitsConfig
	Paths  PathConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LimitsConfig bounds request sizes and dataset shape
type LimitsConfig struct {
	MaxStudies      int
	MaxUploadBytes  int64
	RequestTimeout  time.Duration
}

// PathConfig holds file system paths
type PathConfig struct {
	DataFile string // optional default study table for the CLI
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			ReadTimeout:  getEnvDurationOrDefault("READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDurationOrDefault("WRITE_TIMEOUT", 30*time.Second),
		},
		Limits: LimitsConfig{
			MaxStudies:     getEnvIntOrDefault("MAX_STUDIES", 500),
			MaxUploadBytes: int64(getEnvIntOrDefault("MAX_UPLOAD_MB", 16)) << 20,
			RequestTimeout: getEnvDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		},
		Paths: PathConfig{
			DataFile: getEnvOrDefault("DATA_FILE", ""),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func validateConfig(c *Config) error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Server.Port)
	}
	if c.Limits.MaxStudies < 2 {
		return fmt.Errorf("MAX_STUDIES must be at least 2, got %d", c.Limits.MaxStudies)
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
