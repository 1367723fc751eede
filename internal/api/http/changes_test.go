package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/dispatch"
)

type fakeProcessor struct {
	shard   string
	records int
	failed  int
}

func (f *fakeProcessor) ProcessBatch(_ context.Context, shard string, records []json.RawMessage) dispatch.Summary {
	f.shard = shard
	f.records = len(records)
	return dispatch.Summary{RecordsSeen: len(records), RecordsFailed: f.failed}
}

type fakeBatchLedger struct {
	shard        string
	seen, failed int
	calls        int
}

func (f *fakeBatchLedger) RecordBatch(_ context.Context, shard string, seen, failed int) error {
	f.shard, f.seen, f.failed = shard, seen, failed
	f.calls++
	return nil
}

func newTestHandler(processor *fakeProcessor, ledger *fakeBatchLedger) http.Handler {
	var bl BatchLedger
	if ledger != nil {
		bl = ledger
	}
	h := NewChangesHandler(processor, bl, zerolog.Nop())
	return DefaultMiddleware(zerolog.Nop())(h)
}

func TestChangesEndpointProcessesBatch(t *testing.T) {
	processor := &fakeProcessor{}
	ledger := &fakeBatchLedger{}
	handler := newTestHandler(processor, ledger)

	body := `{"shard": "shard-1", "records": [{"eventName": "INSERT"}, {"eventName": "REMOVE"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/changes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if processor.shard != "shard-1" || processor.records != 2 {
		t.Errorf("processor saw shard %q with %d records", processor.shard, processor.records)
	}
	if ledger.calls != 1 || ledger.seen != 2 {
		t.Errorf("ledger saw %d calls with %d records", ledger.calls, ledger.seen)
	}

	var resp ChangeBatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RecordsProcessed != 2 || resp.RecordsFailed != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Message == "" || resp.Timestamp == "" {
		t.Errorf("response missing message or timestamp: %+v", resp)
	}
	if resp.RequestID == "" {
		t.Error("response missing request id")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}

func TestChangesEndpointReportsFailedRecords(t *testing.T) {
	processor := &fakeProcessor{failed: 1}
	handler := newTestHandler(processor, nil)

	body := `{"shard": "shard-1", "records": [{"a": 1}, {"b": 2}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/changes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Failures are dead-lettered, not bounced; the endpoint stays 200.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with partial failures, got %d", rec.Code)
	}
	var resp ChangeBatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RecordsProcessed != 1 || resp.RecordsFailed != 1 {
		t.Errorf("unexpected counts %+v", resp)
	}
}

func TestChangesEndpointRejectsMalformedBody(t *testing.T) {
	handler := newTestHandler(&fakeProcessor{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/changes", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error == "" {
		t.Error("error response missing message")
	}
}

func TestChangesEndpointRejectsWrongMethod(t *testing.T) {
	handler := newTestHandler(&fakeProcessor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/changes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestChangesEndpointDefaultsShard(t *testing.T) {
	processor := &fakeProcessor{}
	handler := newTestHandler(processor, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/changes", strings.NewReader(`{"records": []}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if processor.shard != "default" {
		t.Errorf("expected default shard, got %q", processor.shard)
	}
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestRecoveryMiddlewareConvertsPanics(t *testing.T) {
	handler := DefaultMiddleware(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler blew up")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/changes", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
