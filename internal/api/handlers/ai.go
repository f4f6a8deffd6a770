package handlers

import (
	"context"
	"net/http"

	"github.com/finlog/finlog/internal/ai"
	"github.com/finlog/finlog/internal/api/middleware"
	"github.com/finlog/finlog/internal/receipt"
	"github.com/rs/zerolog"
)

// ReceiptScanner extracts a draft transaction from a receipt image.
type ReceiptScanner interface {
	Scan(ctx context.Context, userID string, req receipt.ScanRequest) (*receipt.ScanResult, error)
}

// ChatResponder answers a conversation.
type ChatResponder interface {
	Reply(ctx context.Context, userID string, messages []ai.Message) (string, error)
}

// ReceiptsHandler handles receipt scanning.
type ReceiptsHandler struct {
	scanner ReceiptScanner
	log     zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(scanner ReceiptScanner, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{scanner: scanner, log: log}
}

// ScanReceipt handles POST /api/receipts/scan
func (h *ReceiptsHandler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	var req receipt.ScanRequest
	if err := decodeStrict(r, &req); err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	result, err := h.scanner.Scan(r.Context(), middleware.UserIDFromContext(r.Context()), req)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if result.Transaction != nil {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, result)
}

// ChatHandler handles the AI assistant.
type ChatHandler struct {
	responder ChatResponder
	log       zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(responder ChatResponder, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{responder: responder, log: log}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []ai.Message `json:"messages"`
	}
	if err := decodeStrict(r, &req); err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	reply, err := h.responder.Reply(r.Context(), middleware.UserIDFromContext(r.Context()), req.Messages)
	if err != nil {
		middleware.WriteAppError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
