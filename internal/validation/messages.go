package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const tagIDMismatch = "id_mismatch"

// message turns a rule tag into the text shown to the user.
func message(tag, field, param string) string {
	switch tag {
	case "":
		return ""
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "anyuuid":
		return field + " must be a valid UUID"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "hexcolor":
		return field + " must be a hex color such as #1a2b3c"
	case "http_url":
		return field + " must be a valid http(s) URL"
	case tagAmountRequired:
		return "amount is required"
	case tagAmountZero:
		return "amount cannot be zero"
	case tagAmountPositive:
		return "amount must be positive"
	case tagAmountNegative:
		return "amount cannot be negative"
	case tagAmountMax:
		return "amount must not exceed " + MaxAmount.String()
	case tagAmountPlaces:
		return fmt.Sprintf("amount must have at most %d decimal places", AmountPlaces)
	case tagDateRequired:
		return "date is required"
	case tagDateFormat:
		return "date must be in YYYY-MM-DD format"
	case tagDateInvalid:
		return "date is not a valid calendar date"
	case tagDateRange:
		return fmt.Sprintf("date must be between %s and %s", MinDate, param)
	case tagIDMismatch:
		return "id does not match the transaction being updated"
	}
	return field + " is invalid"
}

func fromFieldError(fe validator.FieldError) FieldError {
	return FieldError{Field: fe.Field(), Message: message(fe.Tag(), fe.Field(), fe.Param())}
}
