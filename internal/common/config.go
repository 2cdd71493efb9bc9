package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Batch    BatchConfig
	LLM      LLMConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	UploadDir       string
	MaxUploadBytes  int64
	RetentionWindow time.Duration
}

// BatchConfig holds pipeline-related configuration
type BatchConfig struct {
	ExtractDir    string
	YieldInterval time.Duration
}

// LLMConfig holds extraction-service configuration
type LLMConfig struct {
	Model         string
	APIKey        string
	BaseURL       string
	Temperature   float32
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: getEnv("DB_URL", "./data/agreements.db"),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 200<<20),
			RetentionWindow: getEnvAsDuration("JOB_RETENTION_WINDOW", 5*time.Minute),
		},
		Batch: BatchConfig{
			ExtractDir:    getEnv("EXTRACT_DIR", "./extracted"),
			YieldInterval: getEnvAsDuration("BATCH_YIELD_INTERVAL", 100*time.Millisecond),
		},
		LLM: LLMConfig{
			Model:         getEnv("OPENAI_MODEL", "gpt-4o"),
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			Temperature:   getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			RetryAttempts: getEnvAsInt("LLM_RETRY_ATTEMPTS", 3),
			RetryBackoff:  getEnvAsDuration("LLM_RETRY_BACKOFF", 500*time.Millisecond),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", nil)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", nil)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", nil)
	}
	return nil
}

// Helper functions for environment variable parsing
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
