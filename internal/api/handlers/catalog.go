package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/finlog/finlog/internal/api/middleware"
	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/validation"
	"github.com/rs/zerolog"
)

// CatalogStore manages a user's categories and payment sources.
type CatalogStore interface {
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	ListPaymentSources(ctx context.Context, userID string) ([]domain.PaymentSource, error)
	CreateCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	CreatePaymentSource(ctx context.Context, p domain.PaymentSource) (*domain.PaymentSource, error)
}

// CatalogHandler handles category and payment source endpoints.
type CatalogHandler struct {
	store     CatalogStore
	validator *validation.Validator
	log       zerolog.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(store CatalogStore, v *validation.Validator, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{store: store, validator: v, log: log}
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		middleware.WriteAppError(w, h.log, apperr.Upstream(err))
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readEntry(w, r)
	if !ok {
		return
	}

	c, err := h.store.CreateCategory(r.Context(), domain.Category{
		UserID: middleware.UserIDFromContext(r.Context()),
		Name:   in.Name,
		Color:  in.Color,
	})
	if err != nil {
		middleware.WriteAppError(w, h.log, catalogError(err, "category"))
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, c)
}

// ListPaymentSources handles GET /api/payment-sources
func (h *CatalogHandler) ListPaymentSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListPaymentSources(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		middleware.WriteAppError(w, h.log, apperr.Upstream(err))
		return
	}
	if sources == nil {
		sources = []domain.PaymentSource{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payment_sources": sources,
		"count":           len(sources),
	})
}

// CreatePaymentSource handles POST /api/payment-sources
func (h *CatalogHandler) CreatePaymentSource(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readEntry(w, r)
	if !ok {
		return
	}

	p, err := h.store.CreatePaymentSource(r.Context(), domain.PaymentSource{
		UserID: middleware.UserIDFromContext(r.Context()),
		Name:   in.Name,
		Color:  in.Color,
	})
	if err != nil {
		middleware.WriteAppError(w, h.log, catalogError(err, "payment source"))
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) readEntry(w http.ResponseWriter, r *http.Request) (validation.CatalogInput, bool) {
	var in validation.CatalogInput
	malformed, err := decodeJSON(r, &in)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return in, false
	}
	in.DecodeErrors = malformed
	in, err = h.validator.ValidateCatalog(in)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return in, false
	}
	return in, true
}

func catalogError(err error, what string) error {
	if errors.Is(err, domain.ErrDuplicate) {
		return apperr.Conflict("a " + what + " with this name already exists")
	}
	return apperr.Upstream(err)
}
