package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money for a transaction.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction is a persisted income or expense record owned by one user.
// ID, CreatedAt and UpdatedAt are assigned by the store.
type Transaction struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	Date            civil.Date      `json:"date"`
	CategoryID      string          `json:"category"`
	PaymentSourceID string          `json:"payment_source"`
	Notes           *string         `json:"notes,omitempty"`
	ImageURL        *string         `json:"image_url,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From civil.Date
	To   civil.Date
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// MonthOf returns the range covering the calendar month containing d.
func MonthOf(d civil.Date) DateRange {
	first := civil.Date{Year: d.Year, Month: d.Month, Day: 1}
	last := civil.DateOf(time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC))
	return DateRange{From: first, To: last}
}

// Summary aggregates a user's transactions over a date range.
type Summary struct {
	From       civil.Date      `json:"from"`
	To         civil.Date      `json:"to"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Net        decimal.Decimal `json:"net"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// CategoryTotal is the per-category slice of a Summary.
type CategoryTotal struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Type       TransactionType `json:"type"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
}
