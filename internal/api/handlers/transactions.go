package handlers

import (
	"context"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/api/middleware"
	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// TransactionWriter runs transaction writes through the intake pipeline.
type TransactionWriter interface {
	Create(ctx context.Context, userID string, in validation.CreateInput) (*domain.Transaction, error)
	Update(ctx context.Context, userID, id string, in validation.UpdateInput) (*domain.Transaction, error)
	Delete(ctx context.Context, userID, id string) error
}

// TransactionReader serves the month view and dashboard totals.
type TransactionReader interface {
	ListByDateRange(ctx context.Context, userID string, rng domain.DateRange) ([]domain.Transaction, error)
	Summary(ctx context.Context, userID string, rng domain.DateRange) (*domain.Summary, error)
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	writer TransactionWriter
	reader TransactionReader
	today  func() civil.Date
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(writer TransactionWriter, reader TransactionReader, today func() civil.Date, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		writer: writer,
		reader: reader,
		today:  today,
		log:    log,
	}
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in validation.CreateInput
	malformed, err := decodeJSON(r, &in)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}
	in.DecodeErrors = malformed

	tx, err := h.writer.Create(r.Context(), middleware.UserIDFromContext(r.Context()), in)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in validation.UpdateInput
	malformed, err := decodeJSON(r, &in)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}
	in.DecodeErrors = malformed

	tx, err := h.writer.Update(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	err := h.writer.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r, h.today())
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	transactions, err := h.reader.ListByDateRange(r.Context(), middleware.UserIDFromContext(r.Context()), rng)
	if err != nil {
		middleware.WriteAppError(w, h.log, apperr.Upstream(err))
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
		"from":         rng.From,
		"to":           rng.To,
	})
}

// GetSummary handles GET /api/summary
func (h *TransactionsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r, h.today())
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	summary, err := h.reader.Summary(r.Context(), middleware.UserIDFromContext(r.Context()), rng)
	if err != nil {
		middleware.WriteAppError(w, h.log, apperr.Upstream(err))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}
