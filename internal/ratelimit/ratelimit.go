// Package ratelimit implements the fixed-window per-user gate placed in front
// of the AI endpoints.
package ratelimit

import (
	"context"
	"time"
)

// Policy is a request budget per fixed window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Class identifies an endpoint family with its own budget.
type Class string

const (
	ClassChat    Class = "chat"
	ClassReceipt Class = "receipt"
)

var (
	// ChatPolicy bounds AI chat requests per user.
	ChatPolicy = Policy{Limit: 10, Window: 60 * time.Second}
	// ReceiptPolicy bounds receipt scans per user.
	ReceiptPolicy = Policy{Limit: 20, Window: 60 * time.Second}
)

// PolicyFor returns the fixed policy for an endpoint class.
func PolicyFor(c Class) Policy {
	if c == ClassReceipt {
		return ReceiptPolicy
	}
	return ChatPolicy
}

// Key builds the counter key for a user and class.
func Key(c Class, userID string) string {
	return string(c) + ":" + userID
}

// Outcome is the result of a single check.
type Outcome struct {
	Allowed bool
	// Count is the number of requests recorded in the current window,
	// including this one when it was allowed.
	Count int
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// Store records requests against fixed windows.
type Store interface {
	Check(ctx context.Context, key string, policy Policy) (Outcome, error)
}
