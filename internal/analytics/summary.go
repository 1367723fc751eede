package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/spaolacci/murmur3"

	pipeerrors "github.com/shelfstream/shelfstream/internal/errors"
	"github.com/shelfstream/shelfstream/internal/storage"
	"github.com/shelfstream/shelfstream/pkg/types"
	"golang.org/x/sync/semaphore"
)

const (
	summaryStripes      = 64
	summaryRetryBackoff = 50 * time.Millisecond
)

// Aggregator maintains the per-tenant daily purchase summaries. Updates go
// through a read-modify-write loop guarded by conditional puts, so two
// processes updating the same day cannot overwrite each other's counts.
// Within one process, stripe locks serialise updates to the same summary
// and keep the conditional puts from churning against our own goroutines.
type Aggregator struct {
	store      storage.ObjectStorage
	maxRetries int
	log        zerolog.Logger

	stripes [summaryStripes]*semaphore.Weighted
}

// NewAggregator builds an aggregator. maxRetries bounds how many times one
// Contribute call replays its read-modify-write loop after losing a
// conditional put to a concurrent writer.
func NewAggregator(store storage.ObjectStorage, maxRetries int, log zerolog.Logger) *Aggregator {
	a := &Aggregator{store: store, maxRetries: maxRetries, log: log}
	for i := range a.stripes {
		a.stripes[i] = semaphore.NewWeighted(1)
	}
	return a
}

// Contribute folds one purchase into its tenant's summary for the purchase's
// creation day, creating the summary object on first contribution.
func (a *Aggregator) Contribute(ctx context.Context, purchase *types.PurchaseSnapshot) error {
	partition := ResolvePartition(purchase.CreatedAt)
	key := SummaryKey(purchase.TenantID, partition)

	stripe := a.stripes[stripeFor(key)]
	if err := stripe.Acquire(ctx, 1); err != nil {
		return pipeerrors.NewSummaryError(pipeerrors.CodeSummaryWriteFailed,
			"cancelled waiting to update summary "+key, err)
	}
	defer stripe.Release(1)

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return pipeerrors.NewSummaryError(pipeerrors.CodeSummaryWriteFailed,
					"cancelled updating summary "+key, ctx.Err())
			case <-time.After(summaryRetryBackoff * time.Duration(attempt)):
			}
		}

		summary, etag, err := a.loadSummary(ctx, key, purchase.TenantID, partition)
		if err != nil {
			return err
		}
		summary.Add(purchase)

		data, err := json.Marshal(summary)
		if err != nil {
			return pipeerrors.NewSummaryError(pipeerrors.CodeSummaryWriteFailed,
				"failed to encode summary "+key, err)
		}

		err = a.store.ConditionalPut(ctx, key, data, etag)
		if err == nil {
			a.log.Debug().
				Str("tenant_id", purchase.TenantID).
				Str("key", key).
				Int64("total_purchases", summary.TotalPurchases).
				Msg("daily summary updated")
			return nil
		}
		if !errors.Is(err, storage.ErrPreconditionFailed) {
			return pipeerrors.NewSummaryError(pipeerrors.CodeSummaryWriteFailed,
				"failed to store summary "+key, err)
		}

		// Another writer got there first; reload and replay.
		lastErr = err
		a.log.Debug().
			Str("key", key).
			Int("attempt", attempt+1).
			Msg("summary update lost conditional put, retrying")
	}

	return pipeerrors.NewSummaryError(pipeerrors.CodeSummaryConflict,
		"gave up updating summary "+key+" after repeated conflicts", lastErr)
}

// loadSummary reads the current summary and its version tag, or starts a
// fresh one with an empty tag so the put becomes create-only.
func (a *Aggregator) loadSummary(ctx context.Context, key, tenantID string, partition Partition) (*types.DailySummary, string, error) {
	data, etag, err := a.store.GetWithETag(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return types.NewDailySummary(tenantID, partition.Date()), "", nil
	}
	if err != nil {
		return nil, "", pipeerrors.NewSummaryError(pipeerrors.CodeSummaryReadFailed,
			"failed to read summary "+key, err)
	}

	var summary types.DailySummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, "", pipeerrors.NewSummaryError(pipeerrors.CodeSummaryReadFailed,
			"failed to decode summary "+key, err)
	}
	return &summary, etag, nil
}

func stripeFor(key string) int {
	return int(murmur3.Sum32([]byte(key)) % summaryStripes)
}
