package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/finlog/finlog/internal/ai"
	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modelFunc func(ctx context.Context, messages []ai.Message) (string, error)

func (f modelFunc) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return f(ctx, messages)
}

func echoModel(calls *int) ChatModel {
	return modelFunc(func(ctx context.Context, messages []ai.Message) (string, error) {
		*calls++
		return "You asked: " + messages[len(messages)-1].Content, nil
	})
}

func conversation() []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: "Income this month: 3000. Expenses: 1200."},
		{Role: ai.RoleUser, Content: "How am I doing?"},
	}
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	return ae.Kind
}

func TestReply(t *testing.T) {
	var calls int
	store := ratelimit.NewMemoryStore()
	svc := NewService(echoModel(&calls), ratelimit.NewLimiter(store, true, zerolog.Nop()), zerolog.Nop())

	out, err := svc.Reply(context.Background(), "user-1", conversation())
	require.NoError(t, err)
	assert.Equal(t, "You asked: How am I doing?", out)
	assert.Equal(t, 1, calls)
}

func TestReply_RequiresIdentity(t *testing.T) {
	var calls int
	svc := NewService(echoModel(&calls), ratelimit.NewLimiter(ratelimit.NewMemoryStore(), true, zerolog.Nop()), zerolog.Nop())

	_, err := svc.Reply(context.Background(), "", conversation())
	assert.Equal(t, apperr.KindUnauthenticated, kindOf(t, err))
	assert.Zero(t, calls)
}

func TestReply_EleventhRequestIsRateLimited(t *testing.T) {
	var calls int
	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	now := start
	store := ratelimit.NewMemoryStoreWithClock(func() time.Time { return now })
	svc := NewService(echoModel(&calls), ratelimit.NewLimiter(store, true, zerolog.Nop()), zerolog.Nop())

	for i := 0; i < 10; i++ {
		now = start.Add(time.Duration(i) * time.Second)
		_, err := svc.Reply(context.Background(), "user-1", conversation())
		require.NoError(t, err, "request %d", i+1)
	}

	now = start.Add(30 * time.Second)
	_, err := svc.Reply(context.Background(), "user-1", conversation())
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindRateLimited, ae.Kind)
	assert.Equal(t, start.Add(time.Minute), ae.ResetAt)
	assert.Equal(t, 10, calls)

	_, err = svc.Reply(context.Background(), "user-2", conversation())
	assert.NoError(t, err)
}

func TestReply_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"provider 429", &ai.Error{Op: "chat", Status: 429, Err: fmt.Errorf("%w: quota", ai.ErrUpstreamRateLimited)}, apperr.KindRateLimited},
		{"provider 503", &ai.Error{Op: "chat", Status: 503, Retryable: true, Err: errors.New("unavailable")}, apperr.KindUpstream},
		{"transport", errors.New("dial tcp: timeout"), apperr.KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := modelFunc(func(ctx context.Context, messages []ai.Message) (string, error) { return "", tt.err })
			svc := NewService(model, ratelimit.NewLimiter(ratelimit.NewMemoryStore(), true, zerolog.Nop()), zerolog.Nop())

			_, err := svc.Reply(context.Background(), "user-1", conversation())
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.want, ae.Kind)
			assert.Zero(t, ae.RetryAfter(time.Now()))
			assert.NotContains(t, ae.Message, "unavailable")
		})
	}
}

func TestValidateMessages(t *testing.T) {
	tooMany := make([]ai.Message, MaxMessages+1)
	for i := range tooMany {
		tooMany[i] = ai.Message{Role: ai.RoleUser, Content: "hi"}
	}

	tests := []struct {
		name   string
		msgs   []ai.Message
		fields []string
	}{
		{"valid", conversation(), nil},
		{"empty", nil, []string{"messages"}},
		{"too many", tooMany, []string{"messages"}},
		{"bad role", []ai.Message{{Role: "tool", Content: "x"}, {Role: ai.RoleUser, Content: "y"}}, []string{"messages[0].role"}},
		{"empty content", []ai.Message{{Role: ai.RoleUser, Content: ""}}, []string{"messages[0].content"}},
		{"too long", []ai.Message{{Role: ai.RoleUser, Content: strings.Repeat("a", MaxMessageLength+1)}}, []string{"messages[0].content"}},
		{"last from assistant", []ai.Message{{Role: ai.RoleUser, Content: "a"}, {Role: ai.RoleAssistant, Content: "b"}}, []string{"messages"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateMessages(tt.msgs)
			if tt.fields == nil {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.fields, errs.Fields())
		})
	}
}
