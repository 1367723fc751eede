// Package main runs the shelfstream change-fanout pipeline: it receives
// change-log batches over HTTP and projects them into the per-tenant search
// indices and the partitioned analytics store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/shelfstream/shelfstream/internal/app"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		httpAddr    string
		storageType string
		storagePath string
		searchAddr  string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&httpAddr, "http-addr", "", "Listen address for the change-log endpoint")
	flag.StringVar(&storageType, "storage-type", "", "Analytics storage backend: local or s3")
	flag.StringVar(&storagePath, "storage-path", "", "Base directory for local analytics storage")
	flag.StringVar(&searchAddr, "search-addr", "", "Search backend address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Shelfstream - change-log fanout for the bookstore platform\n\n")
		fmt.Fprintf(os.Stderr, "Usage: shelfstream [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  shelfstream --config /etc/shelfstream/config.yaml\n")
		fmt.Fprintf(os.Stderr, "  shelfstream --storage-type s3 --search-addr http://search:9200\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SHELFSTREAM_HTTP_ADDR         Listen address\n")
		fmt.Fprintf(os.Stderr, "  SHELFSTREAM_SEARCH_ADDRESSES  Search backend addresses (comma separated)\n")
		fmt.Fprintf(os.Stderr, "  SHELFSTREAM_STORAGE_TYPE      Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  SHELFSTREAM_S3_BUCKET         Analytics bucket for s3 storage\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("shelfstream version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, httpAddr, storageType, storagePath, searchAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Msg("starting shelfstream")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble pipeline")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()

	go func() {
		if err := a.WaitForShutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown finished with errors")
		}
	}()

	if err := <-errCh; err != nil {
		log.Fatal().Err(err).Msg("server stopped unexpectedly")
	}
}

// loadConfig layers configuration: defaults, then file, then environment,
// then explicit flags.
func loadConfig(configFile, httpAddr, storageType, storagePath, searchAddr string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if searchAddr != "" {
		cfg.Search.Addresses = []string{searchAddr}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
