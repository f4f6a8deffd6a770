package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finlog/finlog/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRepository_ListCategories(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCatalogRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM categories")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "color", "created_at"}).
			AddRow(catID, "user-1", "Groceries", "#22c55e", now).
			AddRow("c2", "user-1", "Rent", nil, now))

	got, err := repo.ListCategories(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Groceries", got[0].Name)
	assert.Equal(t, "#22c55e", *got[0].Color)
	assert.Nil(t, got[1].Color)
}

func TestCatalogRepository_ListPaymentSources_Empty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_sources")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "color", "created_at"}))

	got, err := repo.ListPaymentSources(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCatalogRepository_Exists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND user_id = $2)")).
		WithArgs(catID, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.CategoryExists(ctx, "user-1", catID)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM payment_sources WHERE id = $1 AND user_id = $2)")).
		WithArgs(sourceID, "user-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	ok, err = repo.PaymentSourceExists(ctx, "user-2", sourceID)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("FROM categories")).
		WillReturnError(errors.New("timeout"))
	_, err = repo.CategoryExists(ctx, "user-1", catID)
	assert.Error(t, err)
}

func TestCatalogRepository_CreateCategory(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCatalogRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories")).
		WithArgs("user-1", "Food", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(catID, now))

	got, err := repo.CreateCategory(context.Background(), domain.Category{UserID: "user-1", Name: "Food"})
	require.NoError(t, err)
	assert.Equal(t, catID, got.ID)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "categories_user_id_name_key"})

	_, err = repo.CreateCategory(context.Background(), domain.Category{UserID: "user-1", Name: "Food"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestCatalogRepository_CreatePaymentSource(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCatalogRepository(db)
	color := "#000"

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payment_sources")).
		WithArgs("user-1", "Visa", "#000").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(sourceID, time.Now()))

	got, err := repo.CreatePaymentSource(context.Background(), domain.PaymentSource{UserID: "user-1", Name: "Visa", Color: &color})
	require.NoError(t, err)
	assert.Equal(t, sourceID, got.ID)
}
