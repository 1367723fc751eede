// Package analytics projects purchase changes into the partitioned event
// store and maintains the per-tenant daily purchase summaries.
package analytics

import (
	"fmt"
	"time"
)

// Partition is a calendar day in the event store layout. All purchase
// events and the daily summary for that day live under it.
type Partition struct {
	Year  int
	Month int
	Day   int
}

// ResolvePartition maps a purchase timestamp to its storage partition.
// The timestamp's own location decides the day; callers normalise to UTC
// upstream when decoding.
func ResolvePartition(t time.Time) Partition {
	return Partition{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Path renders the partition as the year=/month=/day= key segment, with
// months and days zero padded to two digits.
func (p Partition) Path() string {
	return fmt.Sprintf("year=%04d/month=%02d/day=%02d", p.Year, p.Month, p.Day)
}

// Date renders the partition as a plain YYYY-MM-DD date string.
func (p Partition) Date() string {
	return fmt.Sprintf("%04d-%02d-%02d", p.Year, p.Month, p.Day)
}

// EventKey returns the storage key for one purchase event.
func EventKey(tenantID string, p Partition, purchaseID string) string {
	return fmt.Sprintf("%s/purchases/%s/%s.json", tenantID, p.Path(), purchaseID)
}

// SummaryKey returns the storage key for the tenant's daily summary.
func SummaryKey(tenantID string, p Partition) string {
	return fmt.Sprintf("%s/daily_summary/%s/summary.json", tenantID, p.Path())
}
