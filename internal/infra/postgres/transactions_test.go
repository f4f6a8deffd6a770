package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finlog/finlog/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	txID     = "7d2c1f7e-0b5a-4f11-8e6c-1a2b3c4d5e6f"
	catID    = "6f1c2b8e-3a0d-4c1e-9b7a-2f4d5e6a7b8c"
	sourceID = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
)

var txCols = []string{"id", "user_id", "amount", "type", "date", "category_id", "payment_source_id", "notes", "image_url", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func sampleTx() domain.Transaction {
	notes := "Lunch"
	return domain.Transaction{
		UserID:          "user-1",
		Amount:          decimal.RequireFromString("50.00"),
		Type:            domain.TransactionTypeExpense,
		Date:            civil.Date{Year: 2024, Month: time.March, Day: 15},
		CategoryID:      catID,
		PaymentSourceID: sourceID,
		Notes:           &notes,
	}
}

func TestTransactionRepository_Insert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	created := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("user-1", "50", "expense", date, catID, sourceID, "Lunch", nil).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(txID, "user-1", "50.00", "expense", date, catID, sourceID, "Lunch", nil, created, created))

	got, err := repo.Insert(context.Background(), sampleTx())
	require.NoError(t, err)

	assert.Equal(t, txID, got.ID)
	assert.Equal(t, "2024-03-15", got.Date.String())
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, "Lunch", *got.Notes)
	assert.Nil(t, got.ImageURL)
	assert.Equal(t, created, got.CreatedAt)
}

func TestTransactionRepository_Insert_ForeignKeyViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "transactions_payment_source_id_fkey"})

	_, err := repo.Insert(context.Background(), sampleTx())

	var refErr *domain.ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "payment_source", refErr.Field)
}

func TestTransactionRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE id = $1")).
		WithArgs(txID).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(txID, "owner", "12.50", "income", now, catID, sourceID, nil, "https://x/y.png", now, now))

	got, err := repo.GetByID(context.Background(), txID)
	require.NoError(t, err)
	assert.Equal(t, "owner", got.UserID)
	assert.Equal(t, domain.TransactionTypeIncome, got.Type)
	assert.Nil(t, got.Notes)
	assert.Equal(t, "https://x/y.png", *got.ImageURL)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE id = $1")).
		WithArgs(txID).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), txID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransactionRepository_Update_NotOwned(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)

	tx := sampleTx()
	tx.ID = txID

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs(txID, "user-1", "50", "expense", sqlmock.AnyArg(), catID, sourceID, "Lunch", nil).
		WillReturnRows(sqlmock.NewRows(txCols))

	_, err := repo.Update(context.Background(), tx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransactionRepository_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions")).
		WithArgs(txID, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, "user-1", txID))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions")).
		WithArgs(txID, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(ctx, "user-1", txID), domain.ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions")).
		WillReturnError(errors.New("connection reset"))
	assert.Error(t, repo.Delete(ctx, "user-1", txID))
}

func TestTransactionRepository_ListByDateRange(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	month := domain.MonthOf(civil.Date{Year: 2024, Month: time.February, Day: 10})
	d1 := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND date BETWEEN $2 AND $3")).
		WithArgs("user-1", d2, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow("a", "user-1", "10", "expense", d1, catID, sourceID, nil, nil, d1, d1).
			AddRow("b", "user-1", "2000", "income", d2, catID, sourceID, nil, nil, d2, d2))

	got, err := repo.ListByDateRange(context.Background(), "user-1", month)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "2024-02-01", got[1].Date.String())
}

func TestTransactionRepository_Summary(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	rng := domain.MonthOf(civil.Date{Year: 2024, Month: time.March, Day: 1})

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY t.category_id, c.name, t.type")).
		WithArgs("user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "name", "type", "sum", "count"}).
			AddRow("salary", "Salary", "income", "3000.00", 1).
			AddRow("food", "Food", "expense", "420.50", 12).
			AddRow("rent", "Rent", "expense", "1200.00", 1))

	got, err := repo.Summary(context.Background(), "user-1", rng)
	require.NoError(t, err)

	assert.Equal(t, "3000", got.Income.String())
	assert.Equal(t, "1620.5", got.Expense.String())
	assert.Equal(t, "1379.5", got.Net.String())
	assert.Equal(t, 14, got.Count)
	assert.Len(t, got.ByCategory, 3)
}
