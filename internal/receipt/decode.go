package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/validation"
	"github.com/shopspring/decimal"
)

// ErrNoJSONObject is returned when a model reply contains no JSON object.
var ErrNoJSONObject = errors.New("reply contains no JSON object")

// Reply is the model's answer before any defaults are applied. Amount is
// kept raw because models return numbers, numeric strings and currency text.
type Reply struct {
	Amount        json.RawMessage `json:"amount"`
	Date          *string         `json:"date"`
	Category      *string         `json:"category"`
	PaymentSource *string         `json:"payment_source"`
	Notes         *string         `json:"notes"`
}

// DecodeReply extracts the JSON object from a model reply. The object may be
// wrapped in a Markdown code fence or surrounded by prose.
func DecodeReply(raw string) (*Reply, error) {
	clean := cleanModelJSON(raw)
	if !strings.HasPrefix(clean, "{") {
		return nil, ErrNoJSONObject
	}

	var r Reply
	if err := json.Unmarshal([]byte(clean), &r); err != nil {
		return nil, fmt.Errorf("DecodeReply: unmarshal: %w", err)
	}
	return &r, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object if prose surrounds it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// Coerce applies draft defaults to r and pins the category and payment
// source to ids present in the catalogs. It returns the draft and the JSON
// names of the fields it substituted.
func Coerce(r *Reply, categories, sources []domain.CatalogEntry, today civil.Date) (validation.DraftInput, []string) {
	var substituted []string

	draft := validation.DraftInput{
		Amount: parseAmount(r.Amount),
		Notes:  r.Notes,
	}

	if r.Date != nil && validation.CheckDate(strings.TrimSpace(*r.Date), today) == "" {
		draft.Date = strings.TrimSpace(*r.Date)
	} else {
		draft.Date = today.String()
	}

	var ok bool
	if draft.Category, ok = pick(r.Category, categories); !ok {
		substituted = append(substituted, "category")
	}
	if draft.PaymentSource, ok = pick(r.PaymentSource, sources); !ok {
		substituted = append(substituted, "payment_source")
	}

	return draft, substituted
}

// pick returns the catalog id matching want, or the first entry's id.
func pick(want *string, entries []domain.CatalogEntry) (string, bool) {
	if want != nil {
		w := strings.TrimSpace(*want)
		for _, e := range entries {
			if strings.EqualFold(e.ID, w) {
				return e.ID, true
			}
		}
	}
	return entries[0].ID, false
}

// parseAmount reads a number or numeric string. Anything else is zero.
func parseAmount(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£¥ ")
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
