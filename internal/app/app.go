// Package app assembles the pipeline: storage, search, analytics, ledger,
// dispatcher, and the HTTP surface, with one lifecycle for all of them.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/shelfstream/shelfstream/internal/analytics"
	apihttp "github.com/shelfstream/shelfstream/internal/api/http"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/dispatch"
	"github.com/shelfstream/shelfstream/internal/ledger"
	"github.com/shelfstream/shelfstream/internal/search"
	"github.com/shelfstream/shelfstream/internal/server"
	"github.com/shelfstream/shelfstream/internal/storage"
)

// App owns the assembled pipeline and its HTTP server.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	store      storage.ObjectStorage
	ledger     *ledger.Ledger
	dispatcher *dispatch.Dispatcher
	httpServer *http.Server
	shutdown   *server.ShutdownManager
	batchSlots *semaphore.Weighted
}

// New builds the pipeline from configuration. Nothing starts serving until
// Start is called.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to prepare directories: %w", err)
	}

	a := &App{
		cfg:        cfg,
		log:        log,
		shutdown:   server.NewShutdownManager(0, 0, log.With().Str("component", "shutdown").Logger()),
		batchSlots: semaphore.NewWeighted(int64(cfg.Pipeline.MaxConcurrentBatches)),
	}

	store, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	searchClient, err := search.NewClient(cfg.Search)
	if err != nil {
		return nil, err
	}
	lifecycle := search.NewLifecycle(searchClient, cfg.Search.DefaultLanguage)
	projector := search.NewProjector(searchClient, lifecycle,
		log.With().Str("component", "search").Logger())

	writer := analytics.NewEventWriter(store, log.With().Str("component", "analytics").Logger())
	aggregator := analytics.NewAggregator(store, cfg.Pipeline.SummaryMaxRetries,
		log.With().Str("component", "summary").Logger())

	var deadLetter dispatch.DeadLetterSink
	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		a.ledger = l
		a.shutdown.RegisterCloser(l)
		deadLetter = l
	}

	a.dispatcher = dispatch.NewDispatcher(projector, writer, aggregator, deadLetter,
		log.With().Str("component", "dispatch").Logger())

	a.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      a.routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return a, nil
}

func newObjectStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.Endpoint != "",
		})
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
}

func (a *App) routes() http.Handler {
	var batchLedger apihttp.BatchLedger
	if a.ledger != nil {
		batchLedger = a.ledger
	}
	changes := apihttp.NewChangesHandler(a.dispatcher, batchLedger,
		a.log.With().Str("component", "api").Logger())

	chain := apihttp.ChainMiddleware(
		a.shutdown.Middleware,
		apihttp.RecoveryMiddleware,
		apihttp.RequestIDMiddleware,
		apihttp.AccessLogMiddleware(a.log.With().Str("component", "http").Logger()),
		apihttp.ContentTypeMiddleware,
	)

	mux := http.NewServeMux()
	mux.Handle("/v1/changes", chain(a.limitBatches(changes)))
	mux.Handle("/health", apihttp.HealthHandler())
	return mux
}

// limitBatches caps how many change batches process at once; callers past
// the cap wait, and give up with 503 if the request is cancelled first.
func (a *App) limitBatches(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.batchSlots.Acquire(r.Context(), 1); err != nil {
			http.Error(w, `{"error":"server is overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		defer a.batchSlots.Release(1)
		next.ServeHTTP(w, r)
	})
}

// Start begins serving HTTP. It returns once the listener stops.
func (a *App) Start() error {
	a.log.Info().
		Str("addr", a.cfg.HTTP.Addr).
		Str("storage", a.cfg.Storage.Type).
		Msg("pipeline listening")

	err := a.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// WaitForShutdown blocks until a termination signal arrives, then stops the
// HTTP server and closes the pipeline's resources.
func (a *App) WaitForShutdown(ctx context.Context) error {
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		return a.httpServer.Shutdown(context.Background())
	}))
	return a.shutdown.ListenForSignals(ctx)
}

// Stop shuts the pipeline down without waiting for a signal.
func (a *App) Stop(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("http server shutdown failed")
	}
	return a.shutdown.Shutdown(ctx)
}

// Handler exposes the assembled HTTP handler, used by tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}
