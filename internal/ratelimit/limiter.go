package ratelimit

import (
	"context"
	"fmt"

	"github.com/finlog/finlog/internal/apperr"
	"github.com/rs/zerolog"
)

// Limiter applies the fixed per-class policies on top of a Store.
type Limiter struct {
	store    Store
	failOpen bool
	log      zerolog.Logger
}

// NewLimiter creates a limiter. With failOpen set, a store failure lets the
// request through; otherwise it is reported as an internal error.
func NewLimiter(store Store, failOpen bool, log zerolog.Logger) *Limiter {
	return &Limiter{store: store, failOpen: failOpen, log: log}
}

// Allow records a request for userID in class and returns a RateLimited
// error when the window's budget is spent.
func (l *Limiter) Allow(ctx context.Context, userID string, class Class) error {
	key := Key(class, userID)

	out, err := l.store.Check(ctx, key, PolicyFor(class))
	if err != nil {
		if l.failOpen {
			l.log.Warn().Err(err).Str("class", string(class)).Msg("Rate limit check failed, allowing request")
			return nil
		}
		return apperr.Internal(fmt.Errorf("rate limit check: %w", err))
	}

	if !out.Allowed {
		l.log.Info().
			Str("class", string(class)).
			Str("user_id", userID).
			Time("reset_at", out.ResetAt).
			Msg("Rate limit exceeded")
		return apperr.RateLimited(out.ResetAt)
	}

	return nil
}
