// Package config loads pipeline settings from the environment.
// A .env file in the working directory is read first when present;
// real environment variables take precedence over it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultURL    = "https://web.archive.org/web/20230908091635/https://en.wikipedia.org/wiki/List_of_largest_banks"
	DefaultMarker = "By market capitalization"
)

// Source types accepted in ETL_SOURCE_TYPE.
const (
	SourceHTMLTable = "html_table"
	SourceCSVFile   = "csv_file"
)

// Config holds all pipeline configuration.
type Config struct {
	Source   SourceConfig
	Paths    PathConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Trigger  TriggerConfig
}

// SourceConfig describes where the bank list is read from.
type SourceConfig struct {
	Type        string        // ETL_SOURCE_TYPE: html_table | csv_file
	URL         string        // ETL_URL
	Marker      string        // ETL_TABLE_MARKER
	Headers     string        // ETL_HTTP_HEADERS, JSON object
	HTTPTimeout time.Duration // ETL_HTTP_TIMEOUT
	Path        string        // ETL_SOURCE_PATH (csv_file)
	Delimiter   string        // ETL_SOURCE_DELIMITER (csv_file)
}

// PathConfig holds local file locations.
type PathConfig struct {
	Rates   string // ETL_RATES_PATH
	CSV     string // ETL_CSV_PATH
	Log     string // ETL_LOG_PATH
	History string // ETL_HISTORY_PATH, empty disables run history
}

// DatabaseConfig selects the load target.
type DatabaseConfig struct {
	Driver string // ETL_DB_DRIVER: sqlite | mysql | postgres
	Path   string // ETL_DB_PATH (sqlite)
	DSN    string // ETL_DB_DSN (mysql, postgres); wins over the fields below
	Table  string // ETL_TABLE
	Sync   string // ETL_SYNC_MODE: replace | append

	Host     string // ETL_DB_HOST
	Port     int    // ETL_DB_PORT
	Name     string // ETL_DB_NAME
	User     string // ETL_DB_USER
	Password string // ETL_DB_PASSWORD
	SSLMode  string // ETL_DB_SSLMODE
}

// LoggingConfig holds console logging settings.
type LoggingConfig struct {
	Level  string // LOG_LEVEL
	Format string // LOG_FORMAT
}

// TriggerConfig controls repeated runs.
type TriggerConfig struct {
	Schedule string // ETL_SCHEDULE, cron expression
	Watch    bool   // ETL_WATCH, re-run when the rate file changes
}

// Load reads .env (if any) and the environment, applies defaults and validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config load: .env: %w", err)
	}

	timeout, err := getEnvDuration("ETL_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	watch, err := getEnvBool("ETL_WATCH", false)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	port, err := getEnvInt("ETL_DB_PORT", 0)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg := &Config{
		Source: SourceConfig{
			Type:        getEnv("ETL_SOURCE_TYPE", SourceHTMLTable),
			URL:         getEnv("ETL_URL", DefaultURL),
			Marker:      getEnv("ETL_TABLE_MARKER", DefaultMarker),
			Headers:     getEnv("ETL_HTTP_HEADERS", ""),
			HTTPTimeout: timeout,
			Path:        getEnv("ETL_SOURCE_PATH", ""),
			Delimiter:   getEnv("ETL_SOURCE_DELIMITER", ","),
		},
		Paths: PathConfig{
			Rates:   getEnv("ETL_RATES_PATH", "./input/exchange_rate.csv"),
			CSV:     getEnv("ETL_CSV_PATH", "./output/Largest_banks_data.csv"),
			Log:     getEnv("ETL_LOG_PATH", "./logs/code_log.txt"),
			History: getEnv("ETL_HISTORY_PATH", "./output/etl_runs.db"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("ETL_DB_DRIVER", "sqlite"),
			Path:   getEnv("ETL_DB_PATH", "./output/Banks.db"),
			DSN:    getEnv("ETL_DB_DSN", ""),
			Table:  getEnv("ETL_TABLE", "Largest_banks"),
			Sync:   getEnv("ETL_SYNC_MODE", "replace"),

			Host:     getEnv("ETL_DB_HOST", ""),
			Port:     port,
			Name:     getEnv("ETL_DB_NAME", ""),
			User:     getEnv("ETL_DB_USER", ""),
			Password: getEnv("ETL_DB_PASSWORD", ""),
			SSLMode:  getEnv("ETL_DB_SSLMODE", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Trigger: TriggerConfig{
			Schedule: getEnv("ETL_SCHEDULE", ""),
			Watch:    watch,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceHTMLTable:
		if c.Source.URL == "" {
			return fmt.Errorf("source url is required")
		}
		if c.Source.Marker == "" {
			return fmt.Errorf("table marker is required")
		}
	case SourceCSVFile:
		if c.Source.Path == "" {
			return fmt.Errorf("ETL_SOURCE_PATH is required for csv_file")
		}
		if len(c.Source.Delimiter) != 1 {
			return fmt.Errorf("ETL_SOURCE_DELIMITER must be a single character")
		}
	default:
		return fmt.Errorf("unsupported source type %q", c.Source.Type)
	}
	if c.Source.Headers != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(c.Source.Headers), &headers); err != nil {
			return fmt.Errorf("ETL_HTTP_HEADERS must be a JSON object of strings: %w", err)
		}
	}
	if c.Source.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.Paths.Rates == "" || c.Paths.CSV == "" || c.Paths.Log == "" {
		return fmt.Errorf("rates, csv and log paths are required")
	}
	if c.Database.Table == "" {
		return fmt.Errorf("table name is required")
	}
	if c.Database.Sync != "replace" && c.Database.Sync != "append" {
		return fmt.Errorf("ETL_SYNC_MODE must be replace or append, got %q", c.Database.Sync)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("ETL_DB_PATH is required for sqlite")
		}
	case "mysql", "postgres":
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("ETL_DB_DSN or ETL_DB_HOST is required for %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s=%q: %w", key, value, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s=%q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s=%q: %w", key, value, err)
	}
	return b, nil
}
