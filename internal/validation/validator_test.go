package validation

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	categoryID      = "6f1c2b8e-3a0d-4c1e-9b7a-2f4d5e6a7b8c"
	paymentSourceID = "0A1B2C3D-4E5F-4a6b-8c7d-9e0f1a2b3c4d"
)

var fixedNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func str(s string) *string { return &s }

func validCreate() CreateInput {
	return CreateInput{
		Amount:        dec("50.00"),
		Type:          "expense",
		Date:          "2024-03-15",
		Category:      categoryID,
		PaymentSource: paymentSourceID,
	}
}

func requireErrors(t *testing.T, err error) Errors {
	t.Helper()
	require.Error(t, err)
	var verr Errors
	require.ErrorAs(t, err, &verr)
	return verr
}

func TestValidateCreate_Valid(t *testing.T) {
	v := newTestValidator()

	in := validCreate()
	in.Notes = str("<script>alert(1)</script>Lunch")
	in.UserID = "someone-else"

	out, err := v.ValidateCreate(in)
	require.NoError(t, err)
	require.NotNil(t, out.Notes)
	assert.Equal(t, "Lunch", *out.Notes)
	assert.True(t, out.Amount.Equal(decimal.RequireFromString("50")))
	assert.Empty(t, out.UserID)
}

func TestValidateCreate_Amount(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		amount  *decimal.Decimal
		wantMsg string
	}{
		{name: "missing", amount: nil, wantMsg: "amount is required"},
		{name: "zero", amount: dec("0"), wantMsg: "amount cannot be zero"},
		{name: "sub-cent", amount: dec("0.004"), wantMsg: "amount must have at most 2 decimal places"},
		{name: "tenth of a cent", amount: dec("0.001"), wantMsg: "amount must have at most 2 decimal places"},
		{name: "three places below max", amount: dec("999999999.999"), wantMsg: "amount must have at most 2 decimal places"},
		{name: "negative", amount: dec("-5"), wantMsg: "amount must be positive"},
		{name: "above max", amount: dec("1000000000.01"), wantMsg: "amount must not exceed 1000000000"},
		{name: "sub-cent above max", amount: dec("1000000000.004"), wantMsg: "amount must not exceed 1000000000"},
		{name: "eleven digits", amount: dec("10000000000"), wantMsg: "amount must not exceed 1000000000"},
		{name: "huge exponent", amount: dec("1e200000000"), wantMsg: "amount must not exceed 1000000000"},
		{name: "tiny exponent", amount: dec("1e-200000000"), wantMsg: "amount must have at most 2 decimal places"},
		{name: "negative huge exponent", amount: dec("-1e200000000"), wantMsg: "amount must be positive"},
		{name: "smallest", amount: dec("0.01")},
		{name: "max inclusive", amount: dec("1000000000")},
		{name: "max with trailing zeros", amount: dec("1000000000.000")},
		{name: "typical", amount: dec("12.5")},
		{name: "trailing zeros", amount: dec("12.500")},
		{name: "exponent form", amount: dec("1.25e2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreate()
			in.Amount = tt.amount

			assert.Equal(t, tt.wantMsg, CheckAmount(tt.amount))

			_, err := within(t, func() (CreateInput, error) { return v.ValidateCreate(in) })
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			verr := requireErrors(t, err)
			assert.Equal(t, Errors{{Field: "amount", Message: tt.wantMsg}}, verr)
		})
	}
}

// within fails the test if fn does not return promptly.
func within[T any](t *testing.T, fn func() (T, error)) (T, error) {
	t.Helper()

	type result struct {
		out T
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := fn()
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("validation did not return within 5s")
		var zero T
		return zero, nil
	}
}

func TestValidateCreate_AmountScaledToCents(t *testing.T) {
	v := newTestValidator()

	in := validCreate()
	in.Amount = dec("12.5")
	out, err := v.ValidateCreate(in)
	require.NoError(t, err)
	assert.Equal(t, "12.50", out.Amount.StringFixed(2))
	assert.Equal(t, int32(-2), out.Amount.Exponent())
}

func TestValidateCreate_ExtremeExponentInBody(t *testing.T) {
	v := newTestValidator()

	var in CreateInput
	body := `{"amount":1e200000000,"type":"expense","date":"2024-03-15","category":"` + categoryID + `","payment_source":"` + paymentSourceID + `"}`
	require.NoError(t, json.Unmarshal([]byte(body), &in))

	_, err := within(t, func() (CreateInput, error) { return v.ValidateCreate(in) })
	verr := requireErrors(t, err)
	assert.Equal(t, Errors{{Field: "amount", Message: "amount must not exceed 1000000000"}}, verr)
}

func TestValidateCreate_Date(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		date    string
		wantMsg string
	}{
		{name: "missing", date: "", wantMsg: "date is required"},
		{name: "slashes", date: "2024/03/15", wantMsg: "date must be in YYYY-MM-DD format"},
		{name: "day first", date: "15-03-2024", wantMsg: "date must be in YYYY-MM-DD format"},
		{name: "timestamp", date: "2024-03-15T00:00:00Z", wantMsg: "date must be in YYYY-MM-DD format"},
		{name: "single digit month", date: "2024-3-15", wantMsg: "date must be in YYYY-MM-DD format"},
		{name: "not a calendar day", date: "2023-02-29", wantMsg: "date is not a valid calendar date"},
		{name: "month 13", date: "2024-13-01", wantMsg: "date is not a valid calendar date"},
		{name: "before 1900", date: "1899-12-31", wantMsg: "date must be between 1900-01-01 and 2025-06-15"},
		{name: "beyond one year", date: "2025-06-16", wantMsg: "date must be between 1900-01-01 and 2025-06-15"},
		{name: "lower bound", date: "1900-01-01"},
		{name: "upper bound", date: "2025-06-15"},
		{name: "leap day", date: "2024-02-29"},
		{name: "today", date: "2024-06-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreate()
			in.Date = tt.date

			out, err := v.ValidateCreate(in)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.date, out.Date)
				return
			}
			verr := requireErrors(t, err)
			assert.Equal(t, Errors{{Field: "date", Message: tt.wantMsg}}, verr)
		})
	}
}

func TestValidateCreate_ReportsEveryViolation(t *testing.T) {
	v := newTestValidator()

	in := CreateInput{
		Amount:        dec("-1"),
		Type:          "Expense",
		Date:          "yesterday",
		Category:      "not-a-uuid",
		PaymentSource: "",
		Notes:         str(strings.Repeat("a", MaxNotesLength+1)),
		ImageURL:      str("ftp://example.com/r.png"),
	}

	_, err := v.ValidateCreate(in)
	verr := requireErrors(t, err)

	assert.Equal(t, []string{"amount", "type", "date", "category", "payment_source", "notes", "image_url"}, verr.Fields())
	assert.Contains(t, verr, FieldError{Field: "type", Message: "type must be one of: income, expense"})
	assert.Contains(t, verr, FieldError{Field: "category", Message: "category must be a valid UUID"})
	assert.Contains(t, verr, FieldError{Field: "payment_source", Message: "payment_source is required"})
	assert.Contains(t, verr, FieldError{Field: "notes", Message: "notes must be at most 1000 characters"})
}

func TestValidateCreate_NotesLengthAfterSanitize(t *testing.T) {
	v := newTestValidator()

	in := validCreate()
	// Markup does not count towards the limit.
	in.Notes = str("<b>" + strings.Repeat("x", MaxNotesLength) + "</b>")

	out, err := v.ValidateCreate(in)
	require.NoError(t, err)
	assert.Len(t, *out.Notes, MaxNotesLength)
}

func TestValidateCreate_ImageURL(t *testing.T) {
	v := newTestValidator()

	in := validCreate()
	in.ImageURL = str("https://storage.googleapis.com/bucket/receipt.jpg")
	_, err := v.ValidateCreate(in)
	assert.NoError(t, err)

	in.ImageURL = str("   ")
	out, err := v.ValidateCreate(in)
	assert.NoError(t, err)
	assert.Nil(t, out.ImageURL)
}

func TestValidateUpdate(t *testing.T) {
	v := newTestValidator()
	routeID := "7d2c1f7e-0b5a-4f11-8e6c-1a2b3c4d5e6f"

	t.Run("body id optional", func(t *testing.T) {
		_, err := v.ValidateUpdate(routeID, UpdateInput{CreateInput: validCreate()})
		assert.NoError(t, err)
	})

	t.Run("body id matches ignoring case", func(t *testing.T) {
		_, err := v.ValidateUpdate(routeID, UpdateInput{ID: str(strings.ToUpper(routeID)), CreateInput: validCreate()})
		assert.NoError(t, err)
	})

	t.Run("body id must be a uuid", func(t *testing.T) {
		_, err := v.ValidateUpdate(routeID, UpdateInput{ID: str("42"), CreateInput: validCreate()})
		verr := requireErrors(t, err)
		assert.Equal(t, Errors{{Field: "id", Message: "id must be a valid UUID"}}, verr)
	})

	t.Run("body id differs from route", func(t *testing.T) {
		other := "11111111-2222-4333-8444-555555555555"
		_, err := v.ValidateUpdate(routeID, UpdateInput{ID: str(other), CreateInput: validCreate()})
		verr := requireErrors(t, err)
		assert.True(t, verr.Has("id"))
	})

	t.Run("route id must be a uuid", func(t *testing.T) {
		_, err := v.ValidateUpdate("abc", UpdateInput{CreateInput: validCreate()})
		verr := requireErrors(t, err)
		assert.True(t, verr.Has("id"))
	})

	t.Run("same field rules as create", func(t *testing.T) {
		in := validCreate()
		in.Amount = dec("0")
		in.Type = "transfer"
		_, err := v.ValidateUpdate(routeID, UpdateInput{CreateInput: in})
		verr := requireErrors(t, err)
		assert.Equal(t, []string{"amount", "type"}, verr.Fields())
	})
}

func TestValidateDraft(t *testing.T) {
	v := newTestValidator()

	t.Run("defaults", func(t *testing.T) {
		out, err := v.ValidateDraft(DraftInput{Category: categoryID, PaymentSource: paymentSourceID})
		require.NoError(t, err)
		assert.True(t, out.Amount.IsZero())
		assert.Equal(t, "2024-06-15", out.Date)
		assert.Equal(t, "expense", out.Type)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := v.ValidateDraft(DraftInput{Amount: *dec("-3"), Category: categoryID, PaymentSource: paymentSourceID})
		verr := requireErrors(t, err)
		assert.Equal(t, Errors{{Field: "amount", Message: "amount cannot be negative"}}, verr)
	})

	t.Run("huge exponent", func(t *testing.T) {
		in := DraftInput{Amount: *dec("1e200000000"), Category: categoryID, PaymentSource: paymentSourceID}
		_, err := within(t, func() (DraftInput, error) { return v.ValidateDraft(in) })
		verr := requireErrors(t, err)
		assert.Equal(t, Errors{{Field: "amount", Message: "amount must not exceed 1000000000"}}, verr)
	})

	t.Run("tiny exponent rounds to zero", func(t *testing.T) {
		in := DraftInput{Amount: *dec("1e-200000000"), Category: categoryID, PaymentSource: paymentSourceID}
		out, err := within(t, func() (DraftInput, error) { return v.ValidateDraft(in) })
		require.NoError(t, err)
		assert.True(t, out.Amount.IsZero())
	})

	t.Run("sub-cent amount is rounded", func(t *testing.T) {
		out, err := v.ValidateDraft(DraftInput{Amount: *dec("12.345"), Category: categoryID, PaymentSource: paymentSourceID})
		require.NoError(t, err)
		assert.Equal(t, "12.35", out.Amount.String())
	})

	t.Run("references still required", func(t *testing.T) {
		_, err := v.ValidateDraft(DraftInput{Amount: *dec("12.5")})
		verr := requireErrors(t, err)
		assert.Equal(t, []string{"category", "payment_source"}, verr.Fields())
	})

	t.Run("to create keeps the reviewed values", func(t *testing.T) {
		draft, err := v.ValidateDraft(DraftInput{Amount: *dec("12.5"), Date: "2024-01-02", Category: categoryID, PaymentSource: paymentSourceID})
		require.NoError(t, err)

		in := draft.ToCreate(v.Today().String())
		out, err := v.ValidateCreate(in)
		require.NoError(t, err)
		assert.Equal(t, "2024-06-15", out.Date)
		assert.Equal(t, "expense", out.Type)
	})
}

func TestCheckHelpers(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.June, Day: 15}

	assert.Empty(t, CheckAmount(dec("1")))
	assert.Equal(t, "amount cannot be zero", CheckAmount(dec("0")))
	assert.Empty(t, CheckDate("2024-06-15", today))
	assert.NotEmpty(t, CheckDate("2024-6-15", today))
	assert.Empty(t, CheckUUID(categoryID))
	assert.Empty(t, CheckUUID(paymentSourceID))
	assert.NotEmpty(t, CheckUUID("6f1c2b8e3a0d4c1e9b7a2f4d5e6a7b8c"))
	assert.Empty(t, CheckType("income"))
	assert.NotEmpty(t, CheckType("INCOME"))
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 15}, MaxDate(today))
}

func TestMaxDate_LeapDay(t *testing.T) {
	leap := civil.Date{Year: 2024, Month: time.February, Day: 29}
	assert.Equal(t, civil.Date{Year: 2025, Month: time.February, Day: 28}, MaxDate(leap))
	assert.Equal(t, civil.Date{Year: 2029, Month: time.February, Day: 28}, MaxDate(civil.Date{Year: 2028, Month: time.February, Day: 29}))

	v := New(WithClock(func() time.Time { return time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC) }))

	in := validCreate()
	in.Date = "2025-02-28"
	_, err := v.ValidateCreate(in)
	assert.NoError(t, err)

	in.Date = "2025-03-01"
	_, err = v.ValidateCreate(in)
	verr := requireErrors(t, err)
	assert.Equal(t, Errors{{Field: "date", Message: "date must be between 1900-01-01 and 2025-02-28"}}, verr)
}

func TestValidateCatalog(t *testing.T) {
	v := newTestValidator()

	out, err := v.ValidateCatalog(CatalogInput{Name: " <b>Groceries</b> ", Color: str(" #1a2b3c ")})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", out.Name)
	assert.Equal(t, "#1a2b3c", *out.Color)

	_, err = v.ValidateCatalog(CatalogInput{Name: "<script>x</script>", Color: str("blue")})
	verr := requireErrors(t, err)
	assert.Equal(t, []string{"name", "color"}, verr.Fields())

	_, err = v.ValidateCatalog(CatalogInput{Name: strings.Repeat("a", 101)})
	assert.True(t, requireErrors(t, err).Has("name"))
}
