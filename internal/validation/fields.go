package validation

import (
	"regexp"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	// MaxNotesLength is the bound on notes, counted after sanitization.
	MaxNotesLength = 1000
	// DateLayout is the only accepted date format.
	DateLayout = "2006-01-02"
	// AmountPlaces is the number of decimal places an amount may carry.
	AmountPlaces = 2

	// maxIntegerDigits is the integer digit count of MaxAmount.
	maxIntegerDigits = 10
)

var (
	// MaxAmount is the inclusive upper bound on a transaction amount.
	MaxAmount = decimal.NewFromInt(1_000_000_000)
	// MinDate is the earliest accepted transaction date.
	MinDate = civil.Date{Year: 1900, Month: time.January, Day: 1}

	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// Rule tags reported for amount and date. They double as keys into messages.
const (
	tagAmountRequired = "amount_required"
	tagAmountZero     = "amount_zero"
	tagAmountPositive = "amount_positive"
	tagAmountNegative = "amount_negative"
	tagAmountMax      = "amount_max"
	tagAmountPlaces   = "amount_places"
	tagDateRequired   = "date_required"
	tagDateFormat     = "date_format"
	tagDateInvalid    = "date_invalid"
	tagDateRange      = "date_range"
)

// amountRule returns the violated tag for a create/update amount, or "".
func amountRule(a *decimal.Decimal) string {
	switch {
	case a == nil:
		return tagAmountRequired
	case a.Sign() == 0:
		return tagAmountZero
	case a.Sign() < 0:
		return tagAmountPositive
	}
	return magnitudeRule(*a)
}

// draftAmountRule is amountRule for extracted drafts, where zero is a valid
// placeholder for "the model could not read a total".
func draftAmountRule(a decimal.Decimal) string {
	switch {
	case a.Sign() == 0:
		return ""
	case a.Sign() < 0:
		return tagAmountNegative
	}
	return magnitudeRule(a)
}

// magnitudeRule checks a positive amount against MaxAmount and AmountPlaces.
// Comparing or rounding a decimal rescales it, which allocates 10^|exponent|,
// so amounts are first bounded by coefficient length and exponent alone.
func magnitudeRule(a decimal.Decimal) string {
	digits, exp := a.NumDigits(), int(a.Exponent())
	intDigits := digits + exp

	switch {
	case intDigits > maxIntegerDigits:
		return tagAmountMax
	case intDigits == maxIntegerDigits && a.GreaterThan(MaxAmount):
		return tagAmountMax
	case exp >= -AmountPlaces:
		if a.GreaterThan(MaxAmount) {
			return tagAmountMax
		}
		return ""
	case -exp-(digits-1) > AmountPlaces:
		// Even with trailing zeros in the coefficient, a significant digit
		// lies beyond the second decimal place.
		return tagAmountPlaces
	case !a.Truncate(AmountPlaces).Equal(a):
		return tagAmountPlaces
	}
	return ""
}

// roundDraftAmount rounds an extracted amount to AmountPlaces. Amounts that
// fail draftAmountRule on magnitude or sign are returned unchanged.
func roundDraftAmount(a decimal.Decimal) decimal.Decimal {
	if a.Sign() == 0 {
		return decimal.Zero
	}
	if a.Sign() < 0 {
		return a
	}
	intDigits := a.NumDigits() + int(a.Exponent())
	switch {
	case intDigits > maxIntegerDigits:
		return a
	case intDigits < -AmountPlaces:
		// Below 0.001, which rounds to zero.
		return decimal.Zero
	}
	return a.Round(AmountPlaces)
}

// dateRule returns the violated tag for s relative to today, or "".
func dateRule(s string, today civil.Date) string {
	if s == "" {
		return tagDateRequired
	}
	if !datePattern.MatchString(s) {
		return tagDateFormat
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return tagDateInvalid
	}
	if d.Before(MinDate) || d.After(MaxDate(today)) {
		return tagDateRange
	}
	return ""
}

// MaxDate is the latest accepted transaction date for a given today. A leap
// day maps to 28 February of the following year.
func MaxDate(today civil.Date) civil.Date {
	next := civil.Date{Year: today.Year + 1, Month: today.Month, Day: today.Day}
	if !next.IsValid() {
		next.Day = daysIn(next.Month, next.Year)
	}
	return next
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// CheckAmount validates a create/update amount and returns a message, or "" when valid.
func CheckAmount(a *decimal.Decimal) string {
	return message(amountRule(a), "amount", "")
}

// CheckDate validates a YYYY-MM-DD date against today and returns a message, or "" when valid.
func CheckDate(s string, today civil.Date) string {
	return message(dateRule(s, today), "date", MaxDate(today).String())
}

// CheckUUID validates identifier syntax only. Existence is checked against the store later.
func CheckUUID(s string) string {
	if uuidPattern.MatchString(s) {
		return ""
	}
	return "must be a valid UUID"
}

// CheckType accepts exactly "income" or "expense".
func CheckType(s string) string {
	if s == "income" || s == "expense" {
		return ""
	}
	return "type must be one of: income, expense"
}

// IsUUID reports whether s is syntactically a UUID in any letter case.
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}
