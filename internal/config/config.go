// Package config provides unified configuration loading for LAWAgent.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the LAWAgent backend.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Storage       StorageConfig       `yaml:"storage"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Analyzer      AnalyzerConfig      `yaml:"analyzer"`
	Jobs          JobsConfig          `yaml:"jobs"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AuthToken        string        `yaml:"auth_token"`
	CORSOrigins      []string      `yaml:"cors_origins"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// StorageConfig holds raw document storage settings.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	MaxPages    int    `yaml:"max_pages"`
}

// PipelineConfig holds extraction and chunking settings.
type PipelineConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// AnalyzerConfig holds LLM analyzer settings.
type AnalyzerConfig struct {
	Provider       string        `yaml:"provider"` // openai or stub
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	MaxTokens      int           `yaml:"max_tokens"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// JobsConfig holds background job queue settings.
type JobsConfig struct {
	Queue     string      `yaml:"queue"` // memory or redis
	Workers   int         `yaml:"workers"`
	QueueSize int         `yaml:"queue_size"`
	Redis     RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			CORSOrigins:      []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "./data/app.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Storage: StorageConfig{
			DataDir:     "./data/uploads",
			MaxUploadMB: 20,
			MaxPages:    500,
		},
		Pipeline: PipelineConfig{
			ChunkSize:    1800,
			ChunkOverlap: 200,
		},
		Analyzer: AnalyzerConfig{
			Provider:       "stub",
			Model:          "gpt-4o-mini",
			RequestTimeout: 60 * time.Second,
		},
		Jobs: JobsConfig{
			Queue:     "memory",
			Workers:   2,
			QueueSize: 128,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "lawagent:jobs",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Jobs.Queue != "memory" && c.Jobs.Queue != "redis" {
		return fmt.Errorf("invalid job queue driver: %s", c.Jobs.Queue)
	}

	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1")
	}

	if c.Storage.MaxUploadMB < 1 {
		return fmt.Errorf("storage.max_upload_mb must be at least 1")
	}

	if c.Storage.MaxPages < 1 {
		return fmt.Errorf("storage.max_pages must be at least 1")
	}

	if c.Pipeline.ChunkSize < 1 {
		return fmt.Errorf("pipeline.chunk_size must be at least 1")
	}

	if c.Pipeline.ChunkOverlap < 0 {
		return fmt.Errorf("pipeline.chunk_overlap must not be negative")
	}

	if c.Analyzer.Provider != "stub" && c.Analyzer.Provider != "openai" {
		return fmt.Errorf("invalid analyzer provider: %s", c.Analyzer.Provider)
	}

	return nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) * 1024 * 1024
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}

	if v := os.Getenv("FRONTEND_ORIGIN"); v != "" {
		cfg.Server.CORSOrigins = []string{v}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		if mb, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxUploadMB = mb
		}
	}

	if v := os.Getenv("MAX_PAGES"); v != "" {
		if pages, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxPages = pages
		}
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.Analyzer.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Analyzer.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Analyzer.Model = v
	}

	if v := os.Getenv("JOB_QUEUE"); v != "" {
		cfg.Jobs.Queue = v
	}

	if v := os.Getenv("JOB_WORKERS"); v != "" {
		if workers, err := strconv.Atoi(v); err == nil {
			cfg.Jobs.Workers = workers
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Jobs.Queue = "redis"
		cfg.Jobs.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
