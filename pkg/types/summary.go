package types

import (
	"github.com/shopspring/decimal"
)

// DailySummary is the mutable rollup document maintained per (tenant, date).
// Its counters only ever increase under this pipeline's own operations.
type DailySummary struct {
	// Date is the summary day in YYYY-MM-DD form
	Date string `json:"date"`

	// TenantID identifies the tenant the summary belongs to
	TenantID string `json:"tenant_id"`

	TotalPurchases int64           `json:"total_purchases"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalItemsSold int64           `json:"total_items_sold"`

	// PaymentMethods counts purchases per payment method name
	PaymentMethods map[string]int64 `json:"payment_methods"`
}

// NewDailySummary returns a zero-valued summary for the given tenant and day.
func NewDailySummary(tenantID, date string) *DailySummary {
	return &DailySummary{
		Date:           date,
		TenantID:       tenantID,
		TotalRevenue:   decimal.Zero,
		PaymentMethods: make(map[string]int64),
	}
}

// Add merges one purchase's contribution into the summary.
func (s *DailySummary) Add(p *PurchaseSnapshot) {
	s.TotalPurchases++
	s.TotalRevenue = s.TotalRevenue.Add(p.TotalAmount)
	s.TotalItemsSold += p.TotalItems()

	if s.PaymentMethods == nil {
		s.PaymentMethods = make(map[string]int64)
	}
	s.PaymentMethods[p.PaymentMethod]++
}
