// Package types provides core data types for the Shelfstream pipeline.
package types

// BookSnapshot is the full attribute snapshot of a book as carried by a
// change record. On MODIFY the snapshot replaces the prior document
// wholesale; there is no partial-field merge.
type BookSnapshot struct {
	// BookID identifies the book within its tenant
	BookID string `json:"book_id"`

	// TenantID identifies the tenant this book belongs to
	TenantID string `json:"tenant_id"`

	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Editorial string `json:"editorial"`
	Category  string `json:"category"`

	// Price is indexed as a double in the search backend
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	CoverURL    string  `json:"cover_image_url"`

	// StockQuantity defaults to 0 when absent from the snapshot
	StockQuantity   int `json:"stock_quantity"`
	PublicationYear int `json:"publication_year"`

	// Language defaults to "es" when absent from the snapshot
	Language string  `json:"language"`
	Pages    int     `json:"pages"`
	Rating   float64 `json:"rating"`

	// CreatedAt and UpdatedAt are carried as the primary store's own
	// timestamp strings; no partition is derived from them
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`

	// IsActive defaults to true when absent from the snapshot
	IsActive bool `json:"is_active"`
}
