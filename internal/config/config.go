// Package config provides unified configuration for the Shelfstream service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration for the Shelfstream service.
type Config struct {
	// HTTP configuration for the change-log delivery endpoint
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Search configuration for the search backend
	Search SearchConfig `json:"search" yaml:"search"`

	// Storage configuration for the analytics object store
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Ledger configuration for batch/dead-letter bookkeeping
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`

	// Pipeline configuration
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address for the change-log endpoint
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// SearchConfig holds search backend configuration.
type SearchConfig struct {
	// Addresses are the search backend endpoints
	Addresses []string `json:"addresses" yaml:"addresses"`

	// Username and Password are optional basic-auth credentials
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// RequestTimeout bounds each call to the search backend
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// MaxRetries is the retry count for failed search backend calls
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// DefaultLanguage selects the text analyzer for new indices
	DefaultLanguage string `json:"default_language" yaml:"default_language"`
}

// StorageConfig holds analytics object store configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the analytics bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// LedgerConfig holds batch/dead-letter ledger configuration.
type LedgerConfig struct {
	// Path is the SQLite database path; empty disables the ledger
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig holds dispatcher and aggregator configuration.
type PipelineConfig struct {
	// MaxConcurrentBatches caps concurrent change-log invocations
	MaxConcurrentBatches int `json:"max_concurrent_batches" yaml:"max_concurrent_batches"`

	// SummaryMaxRetries bounds conditional-write retries on the daily summary
	SummaryMaxRetries int `json:"summary_max_retries" yaml:"summary_max_retries"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Pretty enables human-readable console output instead of JSON
	Pretty bool `json:"pretty" yaml:"pretty"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Search: SearchConfig{
			Addresses:       []string{"http://localhost:9200"},
			RequestTimeout:  30 * time.Second,
			MaxRetries:      3,
			DefaultLanguage: "es",
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "./data/shelfstream/analytics",
		},
		Ledger: LedgerConfig{
			Path: "./data/shelfstream/ledger.db",
		},
		Pipeline: PipelineConfig{
			MaxConcurrentBatches: 8,
			SummaryMaxRetries:    5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}

	if len(c.Search.Addresses) == 0 {
		return fmt.Errorf("search.addresses must not be empty")
	}
	if c.Search.MaxRetries < 0 {
		return fmt.Errorf("search.max_retries must be >= 0, got %d", c.Search.MaxRetries)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}
	if c.Storage.Type == "local" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage type is local")
	}

	if c.Pipeline.MaxConcurrentBatches < 1 {
		return fmt.Errorf("pipeline.max_concurrent_batches must be >= 1, got %d", c.Pipeline.MaxConcurrentBatches)
	}
	if c.Pipeline.SummaryMaxRetries < 1 {
		return fmt.Errorf("pipeline.summary_max_retries must be >= 1, got %d", c.Pipeline.SummaryMaxRetries)
	}

	return nil
}

// EnsureDirectories creates the directories local storage and the ledger need.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}
	if c.Ledger.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Ledger.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SHELFSTREAM_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SHELFSTREAM_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Search configuration
	if v := os.Getenv("SHELFSTREAM_SEARCH_ADDRESSES"); v != "" {
		cfg.Search.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv("SHELFSTREAM_SEARCH_USERNAME"); v != "" {
		cfg.Search.Username = v
	}
	if v := os.Getenv("SHELFSTREAM_SEARCH_PASSWORD"); v != "" {
		cfg.Search.Password = v
	}
	if v := os.Getenv("SHELFSTREAM_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.RequestTimeout = d
		}
	}
	if v := os.Getenv("SHELFSTREAM_SEARCH_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxRetries = n
		}
	}
	if v := os.Getenv("SHELFSTREAM_SEARCH_DEFAULT_LANGUAGE"); v != "" {
		cfg.Search.DefaultLanguage = v
	}

	// Storage configuration
	if v := os.Getenv("SHELFSTREAM_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SHELFSTREAM_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SHELFSTREAM_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SHELFSTREAM_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SHELFSTREAM_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Ledger configuration
	if v := os.Getenv("SHELFSTREAM_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}

	// Pipeline configuration
	if v := os.Getenv("SHELFSTREAM_MAX_CONCURRENT_BATCHES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxConcurrentBatches = n
		}
	}
	if v := os.Getenv("SHELFSTREAM_SUMMARY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.SummaryMaxRetries = n
		}
	}

	// Logging configuration
	if v := os.Getenv("SHELFSTREAM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SHELFSTREAM_LOG_PRETTY"); v != "" {
		cfg.Logging.Pretty = v == "true" || v == "1"
	}
}
