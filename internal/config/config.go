package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Export engine configuration
	Export ExportConfig

	// Corpus import configuration
	Import ImportConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver       string
	DSN          string // sqlite only
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// ExportConfig holds export engine and run registry settings
type ExportConfig struct {
	ArchiveSize        int // default items per archive for video/channel scope
	MaxArchiveSize     int
	RenderWorkers      int
	ReorderWindow      int // max rendered artifacts held before they are archived
	MaxPendingArchives int
	FailureThreshold   int // consecutive failures before a run is aborted, 0 disables
	RenderTimeout      time.Duration
	OutputDir          string
	MaxConcurrentRuns  int
	Retention          time.Duration
	CleanupInterval    time.Duration
}

// ImportConfig holds corpus import settings
type ImportConfig struct {
	BatchSize     int
	MaxUploadSize int64 // in bytes
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already present in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", DriverSQLite),
			DSN:          getEnv("DB_DSN", "file:comments.db?_pragma=busy_timeout(5000)"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "comment_explorer"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Export: ExportConfig{
			ArchiveSize:        getIntEnv("EXPORT_ARCHIVE_SIZE", 500),
			MaxArchiveSize:     getIntEnv("EXPORT_MAX_ARCHIVE_SIZE", 10000),
			RenderWorkers:      getIntEnv("EXPORT_RENDER_WORKERS", defaultRenderWorkers()),
			ReorderWindow:      getIntEnv("EXPORT_REORDER_WINDOW", 64),
			MaxPendingArchives: getIntEnv("EXPORT_MAX_PENDING_ARCHIVES", 2),
			FailureThreshold:   getIntEnv("EXPORT_FAILURE_THRESHOLD", 25),
			RenderTimeout:      getDurationEnv("EXPORT_RENDER_TIMEOUT", 30*time.Second),
			OutputDir:          getEnv("EXPORT_OUTPUT_DIR", "./data/exports"),
			MaxConcurrentRuns:  getIntEnv("EXPORT_MAX_CONCURRENT_RUNS", 2),
			Retention:          getDurationEnv("EXPORT_RETENTION", 24*time.Hour),
			CleanupInterval:    getDurationEnv("EXPORT_CLEANUP_INTERVAL", time.Hour),
		},
		Import: ImportConfig{
			BatchSize:     getIntEnv("IMPORT_BATCH_SIZE", 1000),
			MaxUploadSize: getInt64Env("MAX_UPLOAD_SIZE", 500*1024*1024), // 500MB
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: sqlite, postgres")
	}

	if c.Export.ArchiveSize < 0 {
		return fmt.Errorf("EXPORT_ARCHIVE_SIZE must not be negative")
	}
	if c.Export.RenderWorkers <= 0 {
		return fmt.Errorf("EXPORT_RENDER_WORKERS must be positive")
	}
	if c.Export.ReorderWindow < c.Export.RenderWorkers {
		return fmt.Errorf("EXPORT_REORDER_WINDOW must be at least EXPORT_RENDER_WORKERS")
	}
	if c.Export.MaxPendingArchives <= 0 {
		return fmt.Errorf("EXPORT_MAX_PENDING_ARCHIVES must be positive")
	}
	if c.Export.FailureThreshold < 0 {
		return fmt.Errorf("EXPORT_FAILURE_THRESHOLD must not be negative")
	}
	if c.Export.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("EXPORT_MAX_CONCURRENT_RUNS must be positive")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive")
	}
	return nil
}

// GetDSN returns the connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == DriverSQLite {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Rendering is CPU and memory heavy, so the pool follows the core count
// instead of the I/O-bound multiplier used for database work.
func defaultRenderWorkers() int {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	if workers > 16 {
		workers = 16
	}
	return workers
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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
