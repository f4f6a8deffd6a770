package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finlog/finlog/internal/domain"
)

// CatalogRepository stores the per-user category and payment source catalogs.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a repository on db.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListCategories returns the caller's categories in creation order.
func (r *CatalogRepository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, color, created_at
		FROM categories
		WHERE user_id = $1
		ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var (
			c     domain.Category
			color sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &color, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		if color.Valid {
			c.Color = &color.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	return out, nil
}

// ListPaymentSources returns the caller's payment sources in creation order.
func (r *CatalogRepository) ListPaymentSources(ctx context.Context, userID string) ([]domain.PaymentSource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, color, created_at
		FROM payment_sources
		WHERE user_id = $1
		ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListPaymentSources: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentSource
	for rows.Next() {
		var (
			p     domain.PaymentSource
			color sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &color, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListPaymentSources: scan: %w", err)
		}
		if color.Valid {
			p.Color = &color.String
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPaymentSources: %w", err)
	}
	return out, nil
}

// CategoryExists reports whether the caller owns a category with id.
func (r *CatalogRepository) CategoryExists(ctx context.Context, userID, id string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND user_id = $2)`, id, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("CategoryExists: %w", err)
	}
	return ok, nil
}

// PaymentSourceExists reports whether the caller owns a payment source with id.
func (r *CatalogRepository) PaymentSourceExists(ctx context.Context, userID, id string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_sources WHERE id = $1 AND user_id = $2)`, id, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("PaymentSourceExists: %w", err)
	}
	return ok, nil
}

// CreateCategory stores a new category for c.UserID.
func (r *CatalogRepository) CreateCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO categories (user_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, c.UserID, c.Name, c.Color,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("CreateCategory: %w", translate(err))
	}
	return &c, nil
}

// CreatePaymentSource stores a new payment source for p.UserID.
func (r *CatalogRepository) CreatePaymentSource(ctx context.Context, p domain.PaymentSource) (*domain.PaymentSource, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_sources (user_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, p.UserID, p.Name, p.Color,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("CreatePaymentSource: %w", translate(err))
	}
	return &p, nil
}
