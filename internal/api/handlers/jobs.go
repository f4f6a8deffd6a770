package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/finlog/finlog/internal/api/middleware"
	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxJobsPage = 200

// JobsHandler handles export job endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}. Jobs of other users are reported as missing.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil || job.UserID != middleware.UserIDFromContext(r.Context()) {
		middleware.WriteAppError(w, h.log, apperr.NotFound("job"))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		middleware.WriteAppError(w, h.log, apperr.Unauthenticated(errors.New("no user in context")))
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID:        userID,
		TransactionID: query.Get("transaction_id"),
		Status:        jobs.JobStatus(query.Get("status")),
		Limit:         50,
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = min(limit, maxJobsPage)
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		middleware.WriteAppError(w, h.log, apperr.Internal(err))
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ExportTransactionJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
