package changelog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfstream/shelfstream/internal/errors"
	"github.com/shelfstream/shelfstream/pkg/types"
)

// DefaultLanguage is substituted when a book snapshot carries no language.
const DefaultLanguage = "es"

// DomainEvent is a decoded, typed change event. Exactly one of Book or
// Purchase is populated, matching Entity. For REMOVE events only the
// identity fields of the snapshot are guaranteed to be present.
type DomainEvent struct {
	Kind   EventKind
	Entity EntityKind

	Book     *types.BookSnapshot
	Purchase *types.PurchaseSnapshot
}

// TenantID returns the tenant the event belongs to.
func (e *DomainEvent) TenantID() string {
	if e.Book != nil {
		return e.Book.TenantID
	}
	if e.Purchase != nil {
		return e.Purchase.TenantID
	}
	return ""
}

// EntityID returns the identity of the affected entity within its tenant.
func (e *DomainEvent) EntityID() string {
	if e.Book != nil {
		return e.Book.BookID
	}
	if e.Purchase != nil {
		return e.Purchase.PurchaseID
	}
	return ""
}

// Decode normalizes one raw change record into a typed domain event.
// Missing optional fields are substituted with documented defaults; a
// record that cannot identify its entity fails locally with a decode error.
func Decode(rec ChangeRecord) (*DomainEvent, error) {
	kind, err := parseEventKind(rec.EventName)
	if err != nil {
		return nil, err
	}

	snap := rec.Snapshot()
	if len(snap) == 0 {
		return nil, errors.NewDecodeError(errors.CodeMissingSnapshot,
			fmt.Sprintf("%s record carries no snapshot", kind))
	}

	switch {
	case snap.has("book_id"):
		return decodeBookEvent(kind, snap)
	case snap.has("purchase_id"):
		return decodePurchaseEvent(kind, snap)
	default:
		return nil, errors.NewDecodeError(errors.CodeUnknownEntity,
			"snapshot carries neither book_id nor purchase_id")
	}
}

func parseEventKind(name string) (EventKind, error) {
	switch EventKind(name) {
	case EventInsert, EventModify, EventRemove:
		return EventKind(name), nil
	default:
		return "", errors.NewDecodeError(errors.CodeUnknownEvent,
			fmt.Sprintf("unknown event kind %q", name))
	}
}

func decodeBookEvent(kind EventKind, snap AttributeMap) (*DomainEvent, error) {
	tenantID := snap.str("tenant_id", "")
	bookID := snap.str("book_id", "")
	if tenantID == "" || bookID == "" {
		return nil, errors.NewDecodeError(errors.CodeMissingIdentity,
			"book snapshot is missing tenant_id or book_id")
	}

	ev := &DomainEvent{Kind: kind, Entity: EntityBook}

	if kind == EventRemove {
		// Only the identity matters for a removal.
		ev.Book = &types.BookSnapshot{TenantID: tenantID, BookID: bookID}
		return ev, nil
	}

	book := &types.BookSnapshot{
		BookID:      bookID,
		TenantID:    tenantID,
		ISBN:        snap.str("isbn", ""),
		Title:       snap.str("title", ""),
		Author:      snap.str("author", ""),
		Editorial:   snap.str("editorial", ""),
		Category:    snap.str("category", ""),
		Description: snap.str("description", ""),
		CoverURL:    snap.str("cover_image_url", ""),
		Language:    snap.str("language", DefaultLanguage),
		CreatedAt:   snap.str("created_at", ""),
		UpdatedAt:   snap.str("updated_at", ""),
		IsActive:    snap.boolean("is_active", true),
	}

	var err error
	if book.Price, err = snap.float("price", 0); err != nil {
		return nil, err
	}
	if book.Rating, err = snap.float("rating", 0); err != nil {
		return nil, err
	}
	if book.StockQuantity, err = snap.integer("stock_quantity", 0); err != nil {
		return nil, err
	}
	if book.PublicationYear, err = snap.integer("publication_year", 0); err != nil {
		return nil, err
	}
	if book.Pages, err = snap.integer("pages", 0); err != nil {
		return nil, err
	}

	ev.Book = book
	return ev, nil
}

func decodePurchaseEvent(kind EventKind, snap AttributeMap) (*DomainEvent, error) {
	tenantID := snap.str("tenant_id", "")
	purchaseID := snap.str("purchase_id", "")
	if tenantID == "" || purchaseID == "" {
		return nil, errors.NewDecodeError(errors.CodeMissingIdentity,
			"purchase snapshot is missing tenant_id or purchase_id")
	}

	ev := &DomainEvent{Kind: kind, Entity: EntityPurchase}

	if kind == EventRemove {
		ev.Purchase = &types.PurchaseSnapshot{TenantID: tenantID, PurchaseID: purchaseID}
		return ev, nil
	}

	purchase := &types.PurchaseSnapshot{
		PurchaseID:    purchaseID,
		TenantID:      tenantID,
		UserID:        snap.str("user_id", ""),
		Status:        snap.str("status", ""),
		PaymentMethod: snap.str("payment_method", ""),
		UpdatedAt:     snap.str("updated_at", ""),
	}

	var err error
	if purchase.TotalAmount, err = snap.money("total_amount"); err != nil {
		return nil, err
	}

	// The partition path is derived from the event's own createdAt;
	// a malformed timestamp fails here, never defaults to "now".
	raw := snap.str("created_at", "")
	if raw == "" {
		return nil, errors.NewDecodeError(errors.CodeInvalidTimestamp,
			"purchase snapshot is missing created_at")
	}
	createdAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.NewDecodeError(errors.CodeInvalidTimestamp,
			fmt.Sprintf("unparseable created_at %q", raw))
	}
	purchase.CreatedAt = createdAt.UTC()

	if items, ok := snap["items"]; ok {
		purchase.Items = make([]types.LineItem, 0, len(items.L))
		for i, item := range items.L {
			li, err := decodeLineItem(item.M)
			if err != nil {
				return nil, errors.NewDecodeError(errors.CodeInvalidNumber,
					fmt.Sprintf("item %d: %v", i, err))
			}
			purchase.Items = append(purchase.Items, li)
		}
	}

	ev.Purchase = purchase
	return ev, nil
}

func decodeLineItem(m map[string]Attribute) (types.LineItem, error) {
	attrs := AttributeMap(m)

	li := types.LineItem{
		BookID: attrs.str("book_id", ""),
		Title:  attrs.str("title", ""),
		Author: attrs.str("author", ""),
	}

	var err error
	if li.Quantity, err = attrs.integer("quantity", 0); err != nil {
		return li, err
	}
	if li.UnitPrice, err = attrs.money("unit_price"); err != nil {
		return li, err
	}
	if li.Subtotal, err = attrs.money("subtotal"); err != nil {
		return li, err
	}

	return li, nil
}

// Attribute accessors. Absent attributes yield the given default; a
// present but unparseable value is a decode error.

func (m AttributeMap) has(name string) bool {
	_, ok := m[name]
	return ok
}

func (m AttributeMap) str(name, def string) string {
	if a, ok := m[name]; ok && a.S != "" {
		return a.S
	}
	return def
}

func (m AttributeMap) boolean(name string, def bool) bool {
	if a, ok := m[name]; ok && a.Bool != nil {
		return *a.Bool
	}
	return def
}

func (m AttributeMap) integer(name string, def int) (int, error) {
	a, ok := m[name]
	if !ok || a.N == "" {
		return def, nil
	}
	n, err := strconv.Atoi(a.N)
	if err != nil {
		return 0, errors.NewDecodeError(errors.CodeInvalidNumber,
			fmt.Sprintf("attribute %s: unparseable integer %q", name, a.N))
	}
	return n, nil
}

func (m AttributeMap) float(name string, def float64) (float64, error) {
	a, ok := m[name]
	if !ok || a.N == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(a.N, 64)
	if err != nil {
		return 0, errors.NewDecodeError(errors.CodeInvalidNumber,
			fmt.Sprintf("attribute %s: unparseable number %q", name, a.N))
	}
	return f, nil
}

func (m AttributeMap) money(name string) (decimal.Decimal, error) {
	a, ok := m[name]
	if !ok || a.N == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(a.N)
	if err != nil {
		return decimal.Zero, errors.NewDecodeError(errors.CodeInvalidNumber,
			fmt.Sprintf("attribute %s: unparseable amount %q", name, a.N))
	}
	return d, nil
}
