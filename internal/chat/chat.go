// Package chat answers questions about a user's finances through the AI model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/finlog/finlog/internal/ai"
	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/ratelimit"
	"github.com/finlog/finlog/internal/validation"
	"github.com/rs/zerolog"
)

// Conversation bounds.
const (
	MaxMessages      = 50
	MaxMessageLength = 8000
)

// ChatModel produces the assistant's next turn.
type ChatModel interface {
	Chat(ctx context.Context, messages []ai.Message) (string, error)
}

// RateLimiter gates chat requests per user.
type RateLimiter interface {
	Allow(ctx context.Context, userID string, class ratelimit.Class) error
}

// Service handles chat requests.
type Service struct {
	model   ChatModel
	limiter RateLimiter
	log     zerolog.Logger
}

// NewService creates a chat service.
func NewService(model ChatModel, limiter RateLimiter, log zerolog.Logger) *Service {
	return &Service{model: model, limiter: limiter, log: log}
}

// Reply returns the assistant's answer to the conversation. Errors are
// *apperr.Error and never carry provider detail in their message.
func (s *Service) Reply(ctx context.Context, userID string, messages []ai.Message) (string, error) {
	if userID == "" {
		return "", apperr.Unauthenticated(nil)
	}
	if err := s.limiter.Allow(ctx, userID, ratelimit.ClassChat); err != nil {
		return "", apperr.From(err)
	}
	if errs := ValidateMessages(messages); len(errs) > 0 {
		return "", apperr.Validation(errs)
	}

	reply, err := s.model.Chat(ctx, messages)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Int("messages", len(messages)).Msg("Chat call failed")
		if errors.Is(err, ai.ErrUpstreamRateLimited) {
			return "", apperr.RateLimited(time.Time{})
		}
		return "", apperr.Upstream(err)
	}
	return reply, nil
}

// ValidateMessages checks the conversation shape.
func ValidateMessages(messages []ai.Message) validation.Errors {
	var errs validation.Errors

	if len(messages) == 0 {
		return validation.Errors{{Field: "messages", Message: "messages is required"}}
	}
	if len(messages) > MaxMessages {
		errs = append(errs, validation.FieldError{
			Field:   "messages",
			Message: fmt.Sprintf("messages must contain at most %d entries", MaxMessages),
		})
	}

	for i, m := range messages {
		field := fmt.Sprintf("messages[%d]", i)
		switch m.Role {
		case ai.RoleSystem, ai.RoleUser, ai.RoleAssistant:
		default:
			errs = append(errs, validation.FieldError{Field: field + ".role", Message: "role must be one of: system, user, assistant"})
		}
		switch n := utf8.RuneCountInString(m.Content); {
		case n == 0:
			errs = append(errs, validation.FieldError{Field: field + ".content", Message: "content is required"})
		case n > MaxMessageLength:
			errs = append(errs, validation.FieldError{
				Field:   field + ".content",
				Message: fmt.Sprintf("content must be at most %d characters", MaxMessageLength),
			})
		}
	}

	if last := messages[len(messages)-1]; last.Role != ai.RoleUser {
		errs = append(errs, validation.FieldError{Field: "messages", Message: "the last message must be from the user"})
	}
	return errs
}
