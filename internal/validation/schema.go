package validation

import (
	"github.com/shopspring/decimal"
)

// CreateInput is the record shape accepted when a transaction is created.
// UserID is never trusted from a request body; callers overwrite it.
type CreateInput struct {
	Amount        *decimal.Decimal `json:"amount"`
	Type          string           `json:"type" validate:"required,oneof=income expense"`
	Date          string           `json:"date"`
	Category      string           `json:"category" validate:"required,anyuuid"`
	PaymentSource string           `json:"payment_source" validate:"required,anyuuid"`
	Notes         *string          `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ImageURL      *string          `json:"image_url,omitempty" validate:"omitempty,http_url"`
	UserID        string           `json:"user_id,omitempty" validate:"-"`

	// DecodeErrors lists fields whose JSON value had the wrong type. They are
	// reported alongside every other violation and replace the field's own rules.
	DecodeErrors Errors `json:"-" validate:"-"`
}

// UpdateInput carries the same field rules as CreateInput. The target id
// comes from the route; ID in the body is optional but must agree with it.
type UpdateInput struct {
	ID *string `json:"id,omitempty" validate:"omitempty,anyuuid"`
	CreateInput
}

// DraftInput is a transaction candidate extracted from a receipt image.
// Amount and Date carry defaults so a poor extraction still yields a draft
// the user can review.
type DraftInput struct {
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type" validate:"omitempty,oneof=income expense"`
	Date          string          `json:"date"`
	Category      string          `json:"category" validate:"required,anyuuid"`
	PaymentSource string          `json:"payment_source" validate:"required,anyuuid"`
	Notes         *string         `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ToCreate converts a reviewed draft into a create submission dated date.
func (d DraftInput) ToCreate(date string) CreateInput {
	amount := d.Amount
	typ := d.Type
	if typ == "" {
		typ = "expense"
	}
	return CreateInput{
		Amount:        &amount,
		Type:          typ,
		Date:          date,
		Category:      d.Category,
		PaymentSource: d.PaymentSource,
		Notes:         d.Notes,
	}
}

// CatalogInput is the body accepted when a category or payment source is created.
type CatalogInput struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Color *string `json:"color,omitempty" validate:"omitempty,hexcolor"`

	DecodeErrors Errors `json:"-" validate:"-"`
}

// fieldOrder fixes the order violations are reported in.
var fieldOrder = map[string]int{
	"id":             0,
	"amount":         1,
	"type":           2,
	"date":           3,
	"category":       4,
	"payment_source": 5,
	"notes":          6,
	"image_url":      7,
	"name":           8,
	"color":          9,
}
