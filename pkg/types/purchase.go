package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a single purchased book within a purchase.
type LineItem struct {
	// BookID identifies the purchased book
	BookID string `json:"book_id"`

	// Quantity is the number of copies purchased (> 0)
	Quantity int `json:"quantity"`

	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
}

// PurchaseSnapshot is the full attribute snapshot of a purchase as carried
// by a change record. It is persisted verbatim as the analytics event record
// and contributes once to the daily summary of its creation date.
type PurchaseSnapshot struct {
	// PurchaseID identifies the purchase within its tenant
	PurchaseID string `json:"purchase_id"`

	// TenantID identifies the tenant this purchase belongs to
	TenantID string `json:"tenant_id"`

	UserID        string          `json:"user_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`

	// CreatedAt is the event time the partition path is derived from.
	// It is parsed at decode time; a malformed timestamp is a decode
	// failure, never defaulted to the processing clock.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`

	Items []LineItem `json:"items"`
}

// TotalItems returns the sum of line-item quantities.
func (p *PurchaseSnapshot) TotalItems() int64 {
	var n int64
	for _, it := range p.Items {
		n += int64(it.Quantity)
	}
	return n
}
