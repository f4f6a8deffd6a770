package receipt

import (
	"context"

	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/ratelimit"
	"github.com/finlog/finlog/internal/validation"
)

// CatalogStore lists a user's categories and payment sources.
type CatalogStore interface {
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	ListPaymentSources(ctx context.Context, userID string) ([]domain.PaymentSource, error)
}

// VisionModel sends one prompt and image to a multimodal model and returns
// its raw text reply.
type VisionModel interface {
	ExtractReceipt(ctx context.Context, prompt string, img Image) (string, error)
}

// RateLimiter gates receipt scans per user.
type RateLimiter interface {
	Allow(ctx context.Context, userID string, class ratelimit.Class) error
}

// DraftSaver persists a reviewed draft as a transaction.
type DraftSaver interface {
	CreateFromDraft(ctx context.Context, userID string, draft validation.DraftInput) (*domain.Transaction, error)
}

// Image is a decoded receipt image. It is held in memory for one request only.
type Image struct {
	Data     []byte
	MIMEType string
}
