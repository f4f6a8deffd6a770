package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// ErrUpstreamRateLimited is returned when the provider answered 429.
var ErrUpstreamRateLimited = errors.New("ai provider rate limited the request")

// Error is a classified provider failure. Provider response bodies are kept
// out of Error() so they cannot reach clients through a careless wrap.
type Error struct {
	Op        string
	Status    int
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ai %s: provider status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("ai %s: transport failure", e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// classify wraps a GenerateContent error. 5xx and transport failures are
// retryable; 4xx are not, and 429 additionally wraps ErrUpstreamRateLimited.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := statusOf(err)
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Op: op, Status: status, Err: fmt.Errorf("%w: %w", ErrUpstreamRateLimited, err)}
	case status >= 500:
		return &Error{Op: op, Status: status, Retryable: true, Err: err}
	case status >= 400:
		return &Error{Op: op, Status: status, Err: err}
	default:
		return &Error{Op: op, Retryable: true, Err: err}
	}
}

func statusOf(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// IsRetryable reports whether err is a classified failure worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
