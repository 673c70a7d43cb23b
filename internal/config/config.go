package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	ServerAddress         string    `json:"serverAddress" yaml:"serverAddress" env:"SERVER_ADDRESS"`
	DatabasePath          string    `json:"databasePath" yaml:"databasePath" env:"DATABASE_PATH"`
	DatabaseURL           string    `json:"databaseUrl" yaml:"databaseUrl" env:"DATABASE_URL"`
	Environment           string    `json:"environment" yaml:"environment" env:"ENVIRONMENT"`
	LogLevel              string    `json:"logLevel" yaml:"logLevel" env:"LOG_LEVEL"`
	RequestTimeoutSeconds int       `json:"requestTimeoutSeconds" yaml:"requestTimeoutSeconds" env:"REQUEST_TIMEOUT_SECONDS"`
	Security              Security  `json:"security" yaml:"security"`
	Sync                  Sync      `json:"sync" yaml:"sync"`
	Tracking              Tracking  `json:"tracking" yaml:"tracking"`
	Telemetry             Telemetry `json:"telemetry" yaml:"telemetry"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Security configuration. An empty APIKey disables the shared gateway key check.
type Security struct {
	APIKey       string `json:"apiKey" yaml:"apiKey" env:"API_KEY"`
	APIKeyHeader string `json:"apiKeyHeader" yaml:"apiKeyHeader" env:"API_KEY_HEADER"`
}

// Sync configuration
type Sync struct {
	MaxBatchSize     int    `json:"maxBatchSize" yaml:"maxBatchSize" env:"SYNC_MAX_BATCH_SIZE"`
	MinClientVersion string `json:"minClientVersion" yaml:"minClientVersion" env:"SYNC_MIN_CLIENT_VERSION"`
}

// Tracking configuration
type Tracking struct {
	MaxBatchSize int `json:"maxBatchSize" yaml:"maxBatchSize" env:"TRACKING_MAX_BATCH_SIZE"`
}

// Telemetry configuration
type Telemetry struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" env:"OTEL_ENABLED"`
	Endpoint    string `json:"endpoint" yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `json:"serviceName" yaml:"serviceName" env:"SERVICE_NAME"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress:         ":5000",
		DatabasePath:          "geoops.db",
		Environment:           "development",
		LogLevel:              "info",
		RequestTimeoutSeconds: 60,
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
		Sync: Sync{
			MaxBatchSize: 500,
		},
		Tracking: Tracking{
			MaxBatchSize: 1000,
		},
		Telemetry: Telemetry{
			ServiceName: "geoops-server",
		},
	}
}

// Load builds the configuration from defaults, then the optional config file
// (CONFIG_PATH, JSON or YAML by extension), then .env and the environment.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if !explicit {
		configPath = "config.json"
	}
	if err := loadFile(cfg, configPath, explicit); err != nil {
		return nil, err
	}

	// A missing .env file is normal outside development
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !cfg.UsePostgres() {
		absPath, err := filepath.Abs(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		cfg.DatabasePath = absPath
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("SERVER_ADDRESS must not be empty")
	}
	if !c.UsePostgres() && c.DatabasePath == "" {
		return fmt.Errorf("one of DATABASE_URL or DATABASE_PATH is required")
	}
	if c.Sync.MaxBatchSize <= 0 {
		return fmt.Errorf("SYNC_MAX_BATCH_SIZE must be positive, got %d", c.Sync.MaxBatchSize)
	}
	if c.Tracking.MaxBatchSize <= 0 {
		return fmt.Errorf("TRACKING_MAX_BATCH_SIZE must be positive, got %d", c.Tracking.MaxBatchSize)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.Sync.MinClientVersion != "" {
		if _, err := semver.NewVersion(c.Sync.MinClientVersion); err != nil {
			return fmt.Errorf("SYNC_MIN_CLIENT_VERSION %q: %w", c.Sync.MinClientVersion, err)
		}
	}
	if c.Security.APIKey != "" {
		if len(c.Security.APIKey) < 32 {
			return fmt.Errorf("API_KEY must be at least 32 characters")
		}
		if c.Security.APIKeyHeader == "" {
			return fmt.Errorf("API_KEY_HEADER must not be empty when API_KEY is set")
		}
	}
	return nil
}
