package receipt

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testToday      = civil.Date{Year: 2024, Month: 6, Day: 15}
	testCategories = []domain.CatalogEntry{
		{ID: "6f1c2b8e-3a0d-4c1e-9b7a-2f4d5e6a7b8c", Name: "Groceries"},
		{ID: "7a2d3c9f-4b1e-4d2f-8c8b-3a5e6f7a8b9d", Name: "Dining"},
	}
	testSources = []domain.CatalogEntry{
		{ID: "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d", Name: "Visa"},
	}
)

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		amount string
	}{
		{"plain", `{"amount": 12.5, "category": "x"}`, "12.5"},
		{"fenced", "```json\n{\"amount\": 3}\n```", "3"},
		{"bare fence", "```\n{\"amount\": \"4.20\"}\n```", `"4.20"`},
		{"prose", "Here is the receipt:\n{\"amount\": 7}\nLet me know!", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeReply(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.amount, string(r.Amount))
		})
	}
}

func TestDecodeReply_Failures(t *testing.T) {
	for _, raw := range []string{"", "I could not read this receipt.", "[1, 2]", "{amount: }"} {
		_, err := DecodeReply(raw)
		assert.Error(t, err, raw)
	}
}

func TestCoerce_SubstitutesUnknownIDs(t *testing.T) {
	r, err := DecodeReply(`{"amount":12.5,"date":"2024-05-01","category":"not-in-catalog","payment_source":"0A1B2C3D-4E5F-4A6B-8C7D-9E0F1A2B3C4D","notes":"Cafe"}`)
	require.NoError(t, err)

	draft, substituted := Coerce(r, testCategories, testSources, testToday)

	assert.Equal(t, testCategories[0].ID, draft.Category)
	assert.Equal(t, testSources[0].ID, draft.PaymentSource)
	assert.Equal(t, []string{"category"}, substituted)
	assert.Equal(t, "12.5", draft.Amount.String())
	assert.Equal(t, "2024-05-01", draft.Date)
	require.NotNil(t, draft.Notes)
	assert.Equal(t, "Cafe", *draft.Notes)
}

func TestCoerce_Defaults(t *testing.T) {
	r, err := DecodeReply(`{"amount":"about twenty","date":"15/06/2024","category":null,"payment_source":null,"notes":null}`)
	require.NoError(t, err)

	draft, substituted := Coerce(r, testCategories, testSources, testToday)

	assert.True(t, draft.Amount.IsZero())
	assert.Equal(t, "2024-06-15", draft.Date)
	assert.Equal(t, []string{"category", "payment_source"}, substituted)
	assert.Nil(t, draft.Notes)
}

func TestParseAmount(t *testing.T) {
	tests := map[string]string{
		`12.5`:        "12.5",
		`"12.50"`:     "12.5",
		`"$1,234.56"`: "1234.56",
		`"£3"`:        "3",
		`null`:        "0",
		`true`:        "0",
	}
	for raw, want := range tests {
		assert.Equal(t, want, parseAmount([]byte(raw)).String(), raw)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(testCategories, testSources, testToday)

	for _, e := range append(append([]domain.CatalogEntry{}, testCategories...), testSources...) {
		assert.Contains(t, p, e.ID+": "+e.Name)
	}
	assert.Contains(t, p, `"payment_source"`)
	assert.Contains(t, p, "2024-06-15")
	assert.Contains(t, p, testCategories[0].ID)
}
