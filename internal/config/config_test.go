package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateStorageType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "gcs"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported storage type")
	}

	cfg = DefaultConfig()
	cfg.Storage.Type = "s3"
	cfg.Storage.S3.Bucket = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for s3 storage without bucket")
	}
}

func TestValidateBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.MaxConcurrentBatches = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_concurrent_batches=0")
	}

	cfg = DefaultConfig()
	cfg.Pipeline.SummaryMaxRetries = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for summary_max_retries=0")
	}

	cfg = DefaultConfig()
	cfg.Search.Addresses = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty search addresses")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SHELFSTREAM_HTTP_ADDR", ":9999")
	t.Setenv("SHELFSTREAM_SEARCH_ADDRESSES", "http://es1:9200,http://es2:9200")
	t.Setenv("SHELFSTREAM_SEARCH_TIMEOUT", "10s")
	t.Setenv("SHELFSTREAM_SEARCH_MAX_RETRIES", "7")
	t.Setenv("SHELFSTREAM_STORAGE_TYPE", "s3")
	t.Setenv("SHELFSTREAM_S3_BUCKET", "bookstore-analytics-test")
	t.Setenv("SHELFSTREAM_SUMMARY_MAX_RETRIES", "9")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("expected :9999, got %s", cfg.HTTP.Addr)
	}
	if len(cfg.Search.Addresses) != 2 || cfg.Search.Addresses[1] != "http://es2:9200" {
		t.Errorf("unexpected search addresses: %v", cfg.Search.Addresses)
	}
	if cfg.Search.RequestTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.Search.RequestTimeout)
	}
	if cfg.Search.MaxRetries != 7 {
		t.Errorf("expected 7 retries, got %d", cfg.Search.MaxRetries)
	}
	if cfg.Storage.Type != "s3" || cfg.Storage.S3.Bucket != "bookstore-analytics-test" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Pipeline.SummaryMaxRetries != 9 {
		t.Errorf("expected 9 summary retries, got %d", cfg.Pipeline.SummaryMaxRetries)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
http:
  addr: ":7070"
search:
  default_language: en
storage:
  type: s3
  s3:
    bucket: analytics-prod
    region: eu-west-1
`)
	if err := os.WriteFile(path, body, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Addr != ":7070" {
		t.Errorf("expected :7070, got %s", cfg.HTTP.Addr)
	}
	if cfg.Search.DefaultLanguage != "en" {
		t.Errorf("expected en, got %s", cfg.Search.DefaultLanguage)
	}
	if cfg.Storage.S3.Bucket != "analytics-prod" || cfg.Storage.S3.Region != "eu-west-1" {
		t.Errorf("unexpected s3 config: %+v", cfg.Storage.S3)
	}
	// Defaults survive partial files.
	if cfg.Pipeline.SummaryMaxRetries != 5 {
		t.Errorf("expected default summary retries, got %d", cfg.Pipeline.SummaryMaxRetries)
	}
}

func TestLoadFromFileUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}
