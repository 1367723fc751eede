package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestShutdownClosesResourcesInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(time.Second, 100*time.Millisecond, zerolog.Nop())

	var order []string
	sm.RegisterCloser(CloserFunc(func() error {
		order = append(order, "first")
		return nil
	}))
	sm.RegisterCloser(CloserFunc(func() error {
		order = append(order, "second")
		return nil
	}))

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("closers ran in order %v, want LIFO", order)
	}
}

func TestShutdownReportsCloserError(t *testing.T) {
	sm := NewShutdownManager(time.Second, 100*time.Millisecond, zerolog.Nop())
	sm.RegisterCloser(CloserFunc(func() error {
		return errors.New("db close failed")
	}))

	if err := sm.Shutdown(context.Background()); err == nil {
		t.Fatal("expected closer error to surface")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	sm := NewShutdownManager(time.Second, 100*time.Millisecond, zerolog.Nop())

	var closes atomic.Int64
	sm.RegisterCloser(CloserFunc(func() error {
		closes.Add(1)
		return nil
	}))

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown failed: %v", err)
	}
	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
	if closes.Load() != 1 {
		t.Errorf("expected 1 close, got %d", closes.Load())
	}
}

func TestMiddlewareRejectsDuringShutdown(t *testing.T) {
	sm := NewShutdownManager(time.Second, 100*time.Millisecond, zerolog.Nop())
	handler := sm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before shutdown, got %d", rec.Code)
	}

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 during shutdown, got %d", rec.Code)
	}
}

func TestShutdownWaitsForInFlightRequests(t *testing.T) {
	sm := NewShutdownManager(2*time.Second, time.Second, zerolog.Nop())

	release := make(chan struct{})
	started := make(chan struct{})
	handler := sm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan struct{})
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		close(done)
	}()
	<-started

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- sm.Shutdown(context.Background()) }()

	select {
	case <-shutdownDone:
		t.Fatal("shutdown finished while a request was still in flight")
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	<-done
	if err := <-shutdownDone; err != nil {
		t.Fatalf("Shutdown failed after drain: %v", err)
	}
}
