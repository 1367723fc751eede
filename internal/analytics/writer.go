package analytics

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	pipeerrors "github.com/shelfstream/shelfstream/internal/errors"
	"github.com/shelfstream/shelfstream/internal/storage"
	"github.com/shelfstream/shelfstream/pkg/types"
)

// EventWriter stores purchase events under their date partition.
type EventWriter struct {
	store storage.ObjectStorage
	log   zerolog.Logger
}

// NewEventWriter builds a writer on top of the analytics object store.
func NewEventWriter(store storage.ObjectStorage, log zerolog.Logger) *EventWriter {
	return &EventWriter{store: store, log: log}
}

// WriteEvent stores the purchase as one JSON object keyed by purchase id
// inside its creation-date partition. Writing the same purchase again
// replaces the stored object, so the store always holds the latest state.
func (w *EventWriter) WriteEvent(ctx context.Context, purchase *types.PurchaseSnapshot) (string, error) {
	partition := ResolvePartition(purchase.CreatedAt)
	key := EventKey(purchase.TenantID, partition, purchase.PurchaseID)

	data, err := json.Marshal(purchase)
	if err != nil {
		return "", pipeerrors.NewAnalyticsError(pipeerrors.CodeEventWriteFailed,
			"failed to encode purchase event", err)
	}
	if err := w.store.Put(ctx, key, data); err != nil {
		return "", pipeerrors.NewAnalyticsError(pipeerrors.CodeEventWriteFailed,
			"failed to store purchase event "+purchase.PurchaseID, err)
	}

	w.log.Debug().
		Str("tenant_id", purchase.TenantID).
		Str("purchase_id", purchase.PurchaseID).
		Str("key", key).
		Msg("purchase event stored")
	return key, nil
}
