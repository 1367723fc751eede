// Package dispatch routes decoded change records to the search and
// analytics projections, isolating per-record failures so one bad record
// never sinks the rest of its batch.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/changelog"
	pipeerrors "github.com/shelfstream/shelfstream/internal/errors"
	"github.com/shelfstream/shelfstream/pkg/types"
)

// BookProjector mirrors book state into the search index.
type BookProjector interface {
	Upsert(ctx context.Context, book *types.BookSnapshot) error
	Remove(ctx context.Context, tenantID, bookID string) error
}

// EventWriter stores purchase events in the analytics store.
type EventWriter interface {
	WriteEvent(ctx context.Context, purchase *types.PurchaseSnapshot) (string, error)
}

// SummaryContributor folds purchases into the daily summaries.
type SummaryContributor interface {
	Contribute(ctx context.Context, purchase *types.PurchaseSnapshot) error
}

// DeadLetterSink receives records the dispatcher could not process.
type DeadLetterSink interface {
	RecordDeadLetter(ctx context.Context, shard, category, code, reason string, payload []byte) (string, error)
}

// Summary reports how a batch went.
type Summary struct {
	RecordsSeen   int
	RecordsFailed int
}

// Dispatcher fans one batch of change records out to the projections.
type Dispatcher struct {
	books      BookProjector
	events     EventWriter
	summaries  SummaryContributor
	deadLetter DeadLetterSink
	log        zerolog.Logger
}

// NewDispatcher wires the projections together. deadLetter may be nil, in
// which case failed records are only logged.
func NewDispatcher(books BookProjector, events EventWriter, summaries SummaryContributor, deadLetter DeadLetterSink, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		books:      books,
		events:     events,
		summaries:  summaries,
		deadLetter: deadLetter,
		log:        log,
	}
}

// ProcessBatch handles each record in order. Records that fail to decode or
// project are dead-lettered and counted; the batch itself always completes.
func (d *Dispatcher) ProcessBatch(ctx context.Context, shard string, records []json.RawMessage) Summary {
	summary := Summary{RecordsSeen: len(records)}
	for i, raw := range records {
		if err := d.processRecord(ctx, raw); err != nil {
			summary.RecordsFailed++
			d.log.Error().
				Err(err).
				Str("shard", shard).
				Int("record", i).
				Str("category", string(pipeerrors.GetCategory(err))).
				Str("code", pipeerrors.GetCode(err)).
				Msg("record failed")
			d.sinkDeadLetter(ctx, shard, raw, err)
		}
	}
	return summary
}

// processRecord decodes and routes one record, converting panics from the
// projections into errors so a poison record cannot take down the batch.
func (d *Dispatcher) processRecord(ctx context.Context, raw json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pipeerrors.NewInternalError(fmt.Sprintf("panic processing record: %v", r), nil)
		}
	}()

	var rec changelog.ChangeRecord
	if uerr := json.Unmarshal(raw, &rec); uerr != nil {
		return pipeerrors.Wrap(pipeerrors.ErrCategoryDecode, pipeerrors.CodeUnknownEvent,
			"record is not valid JSON", uerr)
	}

	event, derr := changelog.Decode(rec)
	if derr != nil {
		return derr
	}

	switch event.Entity {
	case changelog.EntityBook:
		return d.routeBook(ctx, event)
	case changelog.EntityPurchase:
		return d.routePurchase(ctx, event)
	default:
		return pipeerrors.NewDecodeError(pipeerrors.CodeUnknownEntity,
			"no route for entity "+string(event.Entity))
	}
}

func (d *Dispatcher) routeBook(ctx context.Context, event *changelog.DomainEvent) error {
	book := event.Book
	switch event.Kind {
	case changelog.EventInsert, changelog.EventModify:
		if err := d.books.Upsert(ctx, book); err != nil {
			return err
		}
		d.log.Info().
			Str("tenant_id", book.TenantID).
			Str("book_id", book.BookID).
			Str("event", string(event.Kind)).
			Msg("book projected to search")
		return nil
	case changelog.EventRemove:
		if err := d.books.Remove(ctx, book.TenantID, book.BookID); err != nil {
			return err
		}
		d.log.Info().
			Str("tenant_id", book.TenantID).
			Str("book_id", book.BookID).
			Msg("book removed from search")
		return nil
	default:
		return pipeerrors.NewDecodeError(pipeerrors.CodeUnknownEvent,
			"no book route for event "+string(event.Kind))
	}
}

func (d *Dispatcher) routePurchase(ctx context.Context, event *changelog.DomainEvent) error {
	purchase := event.Purchase
	switch event.Kind {
	case changelog.EventInsert:
		key, err := d.events.WriteEvent(ctx, purchase)
		if err != nil {
			return err
		}
		if err := d.summaries.Contribute(ctx, purchase); err != nil {
			return err
		}
		d.log.Info().
			Str("tenant_id", purchase.TenantID).
			Str("purchase_id", purchase.PurchaseID).
			Str("key", key).
			Msg("purchase projected to analytics")
		return nil
	case changelog.EventModify:
		// Updated purchases replace the stored event but never recount in
		// the daily summary; totals track the original sale.
		key, err := d.events.WriteEvent(ctx, purchase)
		if err != nil {
			return err
		}
		d.log.Info().
			Str("tenant_id", purchase.TenantID).
			Str("purchase_id", purchase.PurchaseID).
			Str("key", key).
			Msg("purchase event updated")
		return nil
	case changelog.EventRemove:
		d.log.Warn().
			Str("tenant_id", purchase.TenantID).
			Str("purchase_id", purchase.PurchaseID).
			Msg("purchase removal ignored, analytics records are append-only")
		return nil
	default:
		return pipeerrors.NewDecodeError(pipeerrors.CodeUnknownEvent,
			"no purchase route for event "+string(event.Kind))
	}
}

func (d *Dispatcher) sinkDeadLetter(ctx context.Context, shard string, raw json.RawMessage, cause error) {
	if d.deadLetter == nil {
		return
	}
	id, err := d.deadLetter.RecordDeadLetter(ctx, shard,
		string(pipeerrors.GetCategory(cause)), pipeerrors.GetCode(cause), cause.Error(), raw)
	if err != nil {
		d.log.Error().Err(err).Str("shard", shard).Msg("failed to record dead letter")
		return
	}
	d.log.Debug().Str("dead_letter_id", id).Str("shard", shard).Msg("record dead-lettered")
}
