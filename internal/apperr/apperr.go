// Package apperr defines the terminal outcomes a request can end in and how
// each one is presented to API clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/finlog/finlog/internal/validation"
)

// Kind classifies a terminal failure.
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindValidation       Kind = "validation_failed"
	KindInvalidReference Kind = "invalid_reference"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindRateLimited      Kind = "rate_limited"
	KindSetupRequired    Kind = "setup_required"
	KindExtractionFailed Kind = "extraction_failed"
	KindUpstream         Kind = "upstream_failure"
	KindInternal         Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindUnauthenticated:  http.StatusUnauthorized,
	KindValidation:       http.StatusBadRequest,
	KindInvalidReference: http.StatusUnprocessableEntity,
	KindForbidden:        http.StatusForbidden,
	KindNotFound:         http.StatusNotFound,
	KindConflict:         http.StatusConflict,
	KindRateLimited:      http.StatusTooManyRequests,
	KindSetupRequired:    http.StatusPreconditionFailed,
	KindExtractionFailed: http.StatusUnprocessableEntity,
	KindUpstream:         http.StatusBadGateway,
	KindInternal:         http.StatusInternalServerError,
}

// Error is a classified failure. Message and Fields are safe to show to the
// client; Err carries the underlying cause for server-side logs only.
type Error struct {
	Kind    Kind
	Message string
	Fields  validation.Errors
	// ResetAt is set for rate limited failures when the limiter knows when
	// the current window ends.
	ResetAt time.Time
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// RetryAfter returns the whole seconds until ResetAt, rounded up, relative to now.
func (e *Error) RetryAfter(now time.Time) int {
	if e.ResetAt.IsZero() {
		return 0
	}
	d := e.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// ClientMessage is Message with a retry hint added for rate limited
// failures whose window end is known.
func (e *Error) ClientMessage(now time.Time) string {
	if e.Kind != KindRateLimited {
		return e.Message
	}
	switch secs := e.RetryAfter(now); secs {
	case 0:
		return e.Message
	case 1:
		return e.Message + ", please retry after 1 second"
	default:
		return fmt.Sprintf("%s, please retry after %d seconds", e.Message, secs)
	}
}

// Unauthenticated reports a missing or invalid credential.
func Unauthenticated(cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required", Err: cause}
}

// Validation wraps the full list of field violations.
func Validation(fields validation.Errors) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// InvalidReference reports references that do not resolve for the caller.
func InvalidReference(fields ...string) *Error {
	e := &Error{Kind: KindInvalidReference}
	for _, f := range fields {
		e.Fields = append(e.Fields, validation.FieldError{Field: f, Message: f + " does not exist"})
	}
	switch len(fields) {
	case 1:
		e.Message = fmt.Sprintf("the selected %s does not exist", humanField(fields[0]))
	default:
		e.Message = "the selected category and payment source do not exist"
	}
	return e
}

// Forbidden reports an attempt to touch another user's record. It never says whose.
func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "you do not have access to this transaction"}
}

// NotFound reports a missing resource.
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Conflict reports a write rejected because an equivalent record exists.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// RateLimited reports a denied request. resetAt may be zero when unknown.
func RateLimited(resetAt time.Time) *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests", ResetAt: resetAt}
}

// SetupRequired reports that the caller must create catalog entries first.
func SetupRequired(message string) *Error {
	return &Error{Kind: KindSetupRequired, Message: message}
}

// ExtractionFailed reports an unusable AI reply.
func ExtractionFailed(cause error) *Error {
	return &Error{Kind: KindExtractionFailed, Message: "could not read the receipt, please try again", Err: cause}
}

// Upstream reports a failed call to the store or the AI provider.
func Upstream(cause error) *Error {
	return &Error{Kind: KindUpstream, Message: "an upstream service is unavailable, please try again later", Err: cause}
}

// Internal reports an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: cause}
}

// From classifies any error. Unclassified errors become Internal, and
// validation.Errors become a Validation failure.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var ve validation.Errors
	if errors.As(err, &ve) {
		return Validation(ve)
	}
	return Internal(err)
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

func humanField(f string) string {
	if f == "payment_source" {
		return "payment source"
	}
	return f
}
