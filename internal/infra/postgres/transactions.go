package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/domain"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, amount, type, date, category_id, payment_source_id, notes, image_url, created_at, updated_at`

// TransactionRepository persists transactions.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a repository on db.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Insert stores tx and returns it with the store-assigned id and timestamps.
func (r *TransactionRepository) Insert(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, amount, type, date, category_id, payment_source_id, notes, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+transactionColumns,
		tx.UserID, tx.Amount, string(tx.Type), dateValue(tx.Date),
		tx.CategoryID, tx.PaymentSourceID, tx.Notes, tx.ImageURL,
	)

	out, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("Insert: %w", translate(err))
	}
	return out, nil
}

// GetByID loads a transaction regardless of owner so callers can tell a
// foreign record apart from a missing one.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)

	out, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", translate(err))
	}
	return out, nil
}

// Update overwrites the mutable fields of tx, scoped to tx.UserID.
func (r *TransactionRepository) Update(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET amount = $3, type = $4, date = $5, category_id = $6, payment_source_id = $7,
		    notes = $8, image_url = $9, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+transactionColumns,
		tx.ID, tx.UserID, tx.Amount, string(tx.Type), dateValue(tx.Date),
		tx.CategoryID, tx.PaymentSourceID, tx.Notes, tx.ImageURL,
	)

	out, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", translate(err))
	}
	return out, nil
}

// Delete removes the caller's transaction.
func (r *TransactionRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("Delete: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// ListByDateRange returns the caller's transactions in rng, newest first.
func (r *TransactionRepository) ListByDateRange(ctx context.Context, userID string, rng domain.DateRange) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date DESC, created_at DESC`,
		userID, dateValue(rng.From), dateValue(rng.To),
	)
	if err != nil {
		return nil, fmt.Errorf("ListByDateRange: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByDateRange: scan: %w", err)
		}
		out = append(out, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByDateRange: %w", err)
	}
	return out, nil
}

// Summary totals the caller's transactions in rng by type and category.
func (r *TransactionRepository) Summary(ctx context.Context, userID string, rng domain.DateRange) (*domain.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.category_id, COALESCE(c.name, ''), t.type, SUM(t.amount), COUNT(*)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND t.date BETWEEN $2 AND $3
		GROUP BY t.category_id, c.name, t.type
		ORDER BY SUM(t.amount) DESC`,
		userID, dateValue(rng.From), dateValue(rng.To),
	)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	defer rows.Close()

	sum := &domain.Summary{From: rng.From, To: rng.To, ByCategory: []domain.CategoryTotal{}}
	for rows.Next() {
		var (
			ct  domain.CategoryTotal
			typ string
		)
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &typ, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("Summary: scan: %w", err)
		}
		ct.Type = domain.TransactionType(typ)

		switch ct.Type {
		case domain.TransactionTypeIncome:
			sum.Income = sum.Income.Add(ct.Total)
		case domain.TransactionTypeExpense:
			sum.Expense = sum.Expense.Add(ct.Total)
		}
		sum.Count += ct.Count
		sum.ByCategory = append(sum.ByCategory, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	sum.Net = sum.Income.Sub(sum.Expense)
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		tx       domain.Transaction
		typ      string
		date     time.Time
		amount   decimal.Decimal
		notes    sql.NullString
		imageURL sql.NullString
	)
	err := s.Scan(&tx.ID, &tx.UserID, &amount, &typ, &date, &tx.CategoryID, &tx.PaymentSourceID,
		&notes, &imageURL, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}

	tx.Amount = amount
	tx.Type = domain.TransactionType(typ)
	tx.Date = civil.DateOf(date)
	if notes.Valid {
		tx.Notes = &notes.String
	}
	if imageURL.Valid {
		tx.ImageURL = &imageURL.String
	}
	return &tx, nil
}

func dateValue(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// Ping checks the connection, for health endpoints.
func (r *TransactionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
