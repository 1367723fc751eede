package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	pipeerrors "github.com/shelfstream/shelfstream/internal/errors"
	"github.com/shelfstream/shelfstream/pkg/types"
)

// bookDocument is the indexed form of a book: the snapshot fields plus the
// completion input fed from title, author and category.
type bookDocument struct {
	types.BookSnapshot
	Suggest suggestField `json:"suggest"`
}

type suggestField struct {
	Input []string `json:"input"`
}

// Projector mirrors book changes into the tenant's search index.
type Projector struct {
	client    *Client
	lifecycle *Lifecycle
	log       zerolog.Logger
}

// NewProjector builds a projector that provisions indices through lifecycle
// before writing.
func NewProjector(client *Client, lifecycle *Lifecycle, log zerolog.Logger) *Projector {
	return &Projector{client: client, lifecycle: lifecycle, log: log}
}

// Upsert indexes the book under its book id, replacing any previous version
// of the document. The tenant index is created first if needed.
func (p *Projector) Upsert(ctx context.Context, book *types.BookSnapshot) error {
	if err := p.lifecycle.EnsureIndex(ctx, book.TenantID); err != nil {
		return err
	}

	doc := bookDocument{
		BookSnapshot: *book,
		Suggest:      suggestField{Input: suggestInputs(book)},
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return pipeerrors.NewIndexError(pipeerrors.CodeIndexWriteFailed,
			"failed to encode book document", err)
	}

	callCtx, cancel := p.client.opContext(ctx)
	defer cancel()

	name := IndexName(book.TenantID)
	es := p.client.es
	res, err := es.Index(name, bytes.NewReader(body),
		es.Index.WithDocumentID(book.BookID),
		es.Index.WithContext(callCtx))
	if err != nil {
		return pipeerrors.NewSearchError(pipeerrors.CodeIndexWriteFailed,
			"failed to reach search backend indexing book "+book.BookID, err)
	}
	defer drain(res.Body)

	if res.IsError() {
		return pipeerrors.NewIndexError(pipeerrors.CodeIndexWriteFailed,
			"failed to index book "+book.BookID+": "+res.Status(), nil)
	}

	p.log.Debug().
		Str("tenant_id", book.TenantID).
		Str("book_id", book.BookID).
		Str("index", name).
		Msg("book indexed")
	return nil
}

// Remove deletes the book's document from the tenant index. Removing a book
// that was never indexed is not an error.
func (p *Projector) Remove(ctx context.Context, tenantID, bookID string) error {
	callCtx, cancel := p.client.opContext(ctx)
	defer cancel()

	name := IndexName(tenantID)
	es := p.client.es
	res, err := es.Delete(name, bookID, es.Delete.WithContext(callCtx))
	if err != nil {
		return pipeerrors.NewSearchError(pipeerrors.CodeIndexDeleteFailed,
			"failed to reach search backend deleting book "+bookID, err)
	}
	defer drain(res.Body)

	if res.StatusCode == http.StatusNotFound {
		p.log.Debug().
			Str("tenant_id", tenantID).
			Str("book_id", bookID).
			Msg("book absent from index on remove")
		return nil
	}
	if res.IsError() {
		return pipeerrors.NewIndexError(pipeerrors.CodeIndexDeleteFailed,
			"failed to delete book "+bookID+": "+res.Status(), nil)
	}

	p.log.Debug().
		Str("tenant_id", tenantID).
		Str("book_id", bookID).
		Str("index", name).
		Msg("book removed from index")
	return nil
}

// suggestInputs collects the non-empty completion sources for a book.
func suggestInputs(book *types.BookSnapshot) []string {
	inputs := make([]string, 0, 3)
	for _, s := range []string{book.Title, book.Author, book.Category} {
		if s != "" {
			inputs = append(inputs, s)
		}
	}
	return inputs
}
