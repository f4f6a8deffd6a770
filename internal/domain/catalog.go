package domain

import "time"

// Category classifies transactions. Categories are owned by a single user.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentSource is the account or instrument a transaction was paid with.
type PaymentSource struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogEntry is the id and display name pair shared by categories and payment sources.
type CatalogEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry returns the catalog view of the category.
func (c Category) Entry() CatalogEntry { return CatalogEntry{ID: c.ID, Name: c.Name} }

// Entry returns the catalog view of the payment source.
func (p PaymentSource) Entry() CatalogEntry { return CatalogEntry{ID: p.ID, Name: p.Name} }
