package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/validation"
	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a client-safe message.
type ErrorDetail struct {
	Code              string            `json:"code"`
	Message           string            `json:"message"`
	Details           validation.Errors `json:"details,omitempty"`
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response with a bare message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteAppError renders err using the error taxonomy. Causes are logged
// for server failures and never written to the client.
func WriteAppError(w http.ResponseWriter, log zerolog.Logger, err error) {
	ae := apperr.From(err)

	switch ae.Kind {
	case apperr.KindInternal, apperr.KindUpstream:
		log.Error().Err(ae.Err).Str("kind", string(ae.Kind)).Msg("Request failed")
	}

	now := time.Now()
	body := ErrorBody{Error: ErrorDetail{
		Code:    string(ae.Kind),
		Message: ae.ClientMessage(now),
		Details: ae.Fields,
	}}
	if ae.Kind == apperr.KindRateLimited {
		if secs := ae.RetryAfter(now); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			body.Error.RetryAfterSeconds = secs
		}
	}

	WriteJSON(w, ae.Status(), body)
}
