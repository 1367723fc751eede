// Package search maintains the per-tenant book indices: index lifecycle,
// document upserts and removals.
package search

import (
	"context"
	"fmt"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/shelfstream/shelfstream/internal/config"
)

// Client wraps the search backend connection pool. It is created once per
// process and injected into the components that need it, rather than being
// lazily created behind a package-level global.
type Client struct {
	es             *elasticsearch.Client
	requestTimeout time.Duration
}

// NewClient creates a search backend client from configuration.
func NewClient(cfg config.SearchConfig) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{429, 502, 503, 504},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{es: es, requestTimeout: timeout}, nil
}

// NewClientWithBackend creates a client around a pre-built backend
// connection. Used by tests to point the client at a fake server.
func NewClientWithBackend(es *elasticsearch.Client, requestTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Client{es: es, requestTimeout: requestTimeout}
}

// opContext bounds a single backend call with the configured timeout.
func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.requestTimeout)
}
