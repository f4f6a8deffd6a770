package pipeline

import (
	"context"

	"github.com/finlog/finlog/internal/domain"
)

// TransactionStore persists transactions. Implementations scope writes to
// the transaction's UserID.
type TransactionStore interface {
	Insert(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	Update(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	Delete(ctx context.Context, userID, id string) error
}

// ReferenceStore answers whether a catalog entry exists for a user.
type ReferenceStore interface {
	CategoryExists(ctx context.Context, userID, id string) (bool, error)
	PaymentSourceExists(ctx context.Context, userID, id string) (bool, error)
}
