package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/dispatch"
)

// BatchProcessor fans a batch of change records out to the projections.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, shard string, records []json.RawMessage) dispatch.Summary
}

// BatchLedger records batch outcomes for the processing trail.
type BatchLedger interface {
	RecordBatch(ctx context.Context, shard string, seen, failed int) error
}

// ChangeBatchRequest is the body of POST /v1/changes: one shard's worth of
// change-log records.
type ChangeBatchRequest struct {
	Shard   string            `json:"shard"`
	Records []json.RawMessage `json:"records"`
}

// ChangeBatchResponse reports what happened to a batch. Failed records are
// dead-lettered, not bounced back, so the endpoint answers 200 even when
// some records fail.
type ChangeBatchResponse struct {
	Message          string `json:"message"`
	RecordsProcessed int    `json:"recordsProcessed"`
	RecordsFailed    int    `json:"recordsFailed"`
	Timestamp        string `json:"timestamp"`
	RequestID        string `json:"requestId,omitempty"`
}

// ChangesHandler serves the change-batch ingestion endpoint.
type ChangesHandler struct {
	processor BatchProcessor
	ledger    BatchLedger
	log       zerolog.Logger
}

// NewChangesHandler builds the handler. ledger may be nil when no
// processing trail is configured.
func NewChangesHandler(processor BatchProcessor, ledger BatchLedger, log zerolog.Logger) *ChangesHandler {
	return &ChangesHandler{processor: processor, ledger: ledger, log: log}
}

func (h *ChangesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", GetRequestID(r.Context()))
		return
	}

	var req ChangeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(),
			GetRequestID(r.Context()))
		return
	}
	if req.Shard == "" {
		req.Shard = "default"
	}

	summary := h.processor.ProcessBatch(r.Context(), req.Shard, req.Records)

	if h.ledger != nil {
		if err := h.ledger.RecordBatch(r.Context(), req.Shard, summary.RecordsSeen, summary.RecordsFailed); err != nil {
			// The batch already went through; a ledger miss is not worth a 5xx.
			h.log.Error().Err(err).Str("shard", req.Shard).Msg("failed to record batch in ledger")
		}
	}

	writeJSON(w, http.StatusOK, ChangeBatchResponse{
		Message:          "batch processed",
		RecordsProcessed: summary.RecordsSeen - summary.RecordsFailed,
		RecordsFailed:    summary.RecordsFailed,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		RequestID:        GetRequestID(r.Context()),
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler answers liveness probes.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})
}
