// Package ai talks to the Gemini API for receipt extraction and chat.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/finlog/finlog/internal/receipt"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	// DefaultModelName is the Gemini model used when none is configured.
	DefaultModelName = "gemini-2.5-flash"
	// DefaultChatAttempts bounds chat calls including the first one.
	DefaultChatAttempts = 3

	initialRetryInterval = 500 * time.Millisecond
	maxRetryInterval     = 4 * time.Second
)

var errEmptyReply = errors.New("empty response from model")

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures a Gemini client.
type Config struct {
	APIKey       string
	Model        string
	ChatAttempts int
}

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Gemini implements receipt.VisionModel and the chat model.
type Gemini struct {
	models          generator
	model           string
	attempts        int
	initialInterval time.Duration
	log             zerolog.Logger
}

var _ receipt.VisionModel = (*Gemini)(nil)

// NewGemini creates a client for the Gemini API.
func NewGemini(ctx context.Context, cfg Config, log zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return newGemini(client.Models, cfg, log), nil
}

func newGemini(models generator, cfg Config, log zerolog.Logger) *Gemini {
	g := &Gemini{
		models:          models,
		model:           cfg.Model,
		attempts:        cfg.ChatAttempts,
		initialInterval: initialRetryInterval,
		log:             log,
	}
	if g.model == "" {
		g.model = DefaultModelName
	}
	if g.attempts <= 0 {
		g.attempts = DefaultChatAttempts
	}
	return g
}

// ExtractReceipt sends prompt and img in a single call. It never retries.
func (g *Gemini) ExtractReceipt(ctx context.Context, prompt string, img receipt.Image) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: img.MIMEType,
						Data:     img.Data,
					},
				},
			},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classify("extract receipt", err)
	}

	text := resp.Text()
	if text == "" {
		return "", &Error{Op: "extract receipt", Err: errEmptyReply}
	}
	return text, nil
}

// Chat returns the model's next turn for messages. Server errors and
// transport failures are retried with exponential backoff; 4xx are not.
func (g *Gemini) Chat(ctx context.Context, messages []Message) (string, error) {
	contents, config := chatContents(messages)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.initialInterval
	policy.MaxInterval = maxRetryInterval
	policy.MaxElapsedTime = 0

	var text string
	attempt := 0
	operation := func() error {
		attempt++
		resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			err = classify("chat", err)
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		text = resp.Text()
		if text == "" {
			return backoff.Permanent(&Error{Op: "chat", Err: errEmptyReply})
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		g.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("Chat call failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.attempts-1)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return "", err
	}
	return text, nil
}

// chatContents maps the conversation onto Gemini roles. System messages
// become the system instruction.
func chatContents(messages []Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var (
		contents []*genai.Content
		system   []*genai.Part
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, &genai.Part{Text: m.Content})
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	if len(system) == 0 {
		return contents, nil
	}
	return contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: system},
	}
}
