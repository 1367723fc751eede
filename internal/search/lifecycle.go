package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	pipeerrors "github.com/shelfstream/shelfstream/internal/errors"
)

// IndexName returns the index that holds a tenant's book documents.
func IndexName(tenantID string) string {
	return "books_" + tenantID
}

// textAnalyzers maps a book language code to the analyzer applied to its
// full-text fields. Unknown codes fall back to the default language.
var textAnalyzers = map[string]string{
	"es": "spanish",
	"en": "english",
	"fr": "french",
	"de": "german",
	"it": "italian",
	"pt": "portuguese",
}

// Lifecycle creates tenant indices on demand and remembers which ones it
// has already verified, so the existence check runs once per tenant per
// process instead of once per record.
type Lifecycle struct {
	client          *Client
	defaultLanguage string

	mu    sync.Mutex
	known map[string]struct{}
}

// NewLifecycle builds an index lifecycle manager. defaultLanguage selects
// the text analyzer for new indices (the pipeline provisions one index per
// tenant, not per book, so the tenant-wide default applies).
func NewLifecycle(client *Client, defaultLanguage string) *Lifecycle {
	return &Lifecycle{
		client:          client,
		defaultLanguage: defaultLanguage,
		known:           make(map[string]struct{}),
	}
}

// EnsureIndex makes sure the tenant's book index exists, creating it with
// the full mapping when absent. Safe to call before every write.
func (l *Lifecycle) EnsureIndex(ctx context.Context, tenantID string) error {
	name := IndexName(tenantID)

	l.mu.Lock()
	_, ok := l.known[name]
	l.mu.Unlock()
	if ok {
		return nil
	}

	callCtx, cancel := l.client.opContext(ctx)
	defer cancel()

	es := l.client.es
	res, err := es.Indices.Exists([]string{name}, es.Indices.Exists.WithContext(callCtx))
	if err != nil {
		return pipeerrors.NewIndexError(pipeerrors.CodeIndexCheckFailed,
			"failed to check index "+name, err)
	}
	defer drain(res.Body)

	switch res.StatusCode {
	case http.StatusOK:
		l.remember(name)
		return nil
	case http.StatusNotFound:
		// fall through to create
	default:
		return pipeerrors.NewIndexError(pipeerrors.CodeIndexCheckFailed,
			"unexpected status checking index "+name+": "+res.Status(), nil)
	}

	if err := l.createIndex(ctx, name); err != nil {
		return err
	}
	l.remember(name)
	return nil
}

func (l *Lifecycle) createIndex(ctx context.Context, name string) error {
	body, err := json.Marshal(indexDefinition(l.analyzer()))
	if err != nil {
		return pipeerrors.NewIndexError(pipeerrors.CodeIndexCreateFailed,
			"failed to encode index definition", err)
	}

	callCtx, cancel := l.client.opContext(ctx)
	defer cancel()

	es := l.client.es
	res, err := es.Indices.Create(name,
		es.Indices.Create.WithBody(bytes.NewReader(body)),
		es.Indices.Create.WithContext(callCtx))
	if err != nil {
		return pipeerrors.NewIndexError(pipeerrors.CodeIndexCreateFailed,
			"failed to create index "+name, err)
	}
	defer res.Body.Close()

	if !res.IsError() {
		return nil
	}

	// Two pipeline workers can race on the first record for a tenant; the
	// loser sees the index already in place, which is the desired outcome.
	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode == http.StatusBadRequest &&
		strings.Contains(string(raw), "resource_already_exists_exception") {
		return nil
	}

	return pipeerrors.NewIndexError(pipeerrors.CodeIndexCreateFailed,
		"failed to create index "+name+": "+res.Status(), nil)
}

func (l *Lifecycle) analyzer() string {
	if a, ok := textAnalyzers[l.defaultLanguage]; ok {
		return a
	}
	return textAnalyzers["es"]
}

func (l *Lifecycle) remember(name string) {
	l.mu.Lock()
	l.known[name] = struct{}{}
	l.mu.Unlock()
}

// indexDefinition returns the settings and mapping for a tenant book index.
// Full-text fields share one language analyzer; identity and facet fields
// are keywords; suggest backs the autocomplete surface.
func indexDefinition(analyzer string) map[string]any {
	text := map[string]any{"type": "text", "analyzer": analyzer}
	keyword := map[string]any{"type": "keyword"}

	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"book_id":          keyword,
				"tenant_id":        keyword,
				"isbn":             keyword,
				"title":            text,
				"author":           text,
				"description":      text,
				"editorial":        keyword,
				"category":         keyword,
				"language":         keyword,
				"price":            map[string]any{"type": "double"},
				"rating":           map[string]any{"type": "double"},
				"publication_year": map[string]any{"type": "integer"},
				"stock_quantity":   map[string]any{"type": "integer"},
				"pages":            map[string]any{"type": "integer"},
				"is_active":        map[string]any{"type": "boolean"},
				"suggest": map[string]any{
					"type":     "completion",
					"analyzer": "simple",
				},
			},
		},
	}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
