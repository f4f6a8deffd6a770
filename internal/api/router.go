// Package api assembles the HTTP router.
package api

import (
	"net/http"

	"github.com/finlog/finlog/internal/api/handlers"
	"github.com/finlog/finlog/internal/api/middleware"
	"github.com/finlog/finlog/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the endpoint handlers. Attachments may be nil when no
// bucket is configured.
type Handlers struct {
	Health       *handlers.HealthHandler
	Transactions *handlers.TransactionsHandler
	Catalog      *handlers.CatalogHandler
	Receipts     *handlers.ReceiptsHandler
	Chat         *handlers.ChatHandler
	Attachments  *handlers.AttachmentsHandler
	Jobs         *handlers.JobsHandler
}

// RouterConfig holds the router-level settings.
type RouterConfig struct {
	AllowedOrigins []string
	// MaxBodyBytes bounds JSON bodies; MaxUploadBytes bounds image bodies.
	MaxBodyBytes   int64
	MaxUploadBytes int64
}

// NewRouter wires handlers behind the middleware chain. Everything under
// /api requires a verified bearer credential.
func NewRouter(cfg RouterConfig, verifier auth.Verifier, h Handlers, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/health", h.Health.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(verifier, log))

		r.Group(func(r chi.Router) {
			r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

			// Transactions
			r.Get("/transactions", h.Transactions.ListTransactions)
			r.Post("/transactions", h.Transactions.CreateTransaction)
			r.Put("/transactions/{id}", h.Transactions.UpdateTransaction)
			r.Delete("/transactions/{id}", h.Transactions.DeleteTransaction)
			r.Get("/summary", h.Transactions.GetSummary)

			// Catalogs
			r.Get("/categories", h.Catalog.ListCategories)
			r.Post("/categories", h.Catalog.CreateCategory)
			r.Get("/payment-sources", h.Catalog.ListPaymentSources)
			r.Post("/payment-sources", h.Catalog.CreatePaymentSource)

			// AI
			r.Post("/chat", h.Chat.Chat)

			// Export jobs
			r.Get("/jobs", h.Jobs.ListJobs)
			r.Get("/jobs/{id}", h.Jobs.GetJob)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BodyLimit(cfg.MaxUploadBytes))

			r.Post("/receipts/scan", h.Receipts.ScanReceipt)
			if h.Attachments != nil {
				r.Post("/attachments", h.Attachments.UploadAttachment)
			}
		})
	})

	return r
}
