package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/finlog/finlog/internal/api/middleware"
	"github.com/finlog/finlog/internal/attachments"
	"github.com/rs/zerolog"
)

// AttachmentUploader stores an uploaded file.
type AttachmentUploader interface {
	Upload(ctx context.Context, userID, contentType string, body io.Reader) (*attachments.Attachment, error)
}

// AttachmentsHandler handles receipt image uploads.
type AttachmentsHandler struct {
	uploader AttachmentUploader
	log      zerolog.Logger
}

// NewAttachmentsHandler creates a new attachments handler.
func NewAttachmentsHandler(uploader AttachmentUploader, log zerolog.Logger) *AttachmentsHandler {
	return &AttachmentsHandler{uploader: uploader, log: log}
}

// UploadAttachment handles POST /api/attachments. The raw request body is
// the file; Content-Type describes it.
func (h *AttachmentsHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	att, err := h.uploader.Upload(r.Context(), middleware.UserIDFromContext(r.Context()), r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	h.log.Info().
		Str("object", att.Object).
		Int("size", att.Size).
		Msg("Attachment stored")

	middleware.WriteJSON(w, http.StatusCreated, att)
}
