// Package handlers implements the HTTP endpoints. Every handler reads the
// caller's user id from the context set by middleware.Authenticate.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/validation"
	"github.com/shopspring/decimal"
)

// decodeJSON reads a JSON object body into v. A field whose value has the
// wrong type is left unset and returned as a violation, so the caller can
// report it together with everything else wrong with the body.
func decodeJSON(r *http.Request, v interface{}) (validation.Errors, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		var (
			maxErr  *http.MaxBytesError
			typeErr *json.UnmarshalTypeError
		)
		switch {
		case errors.As(err, &maxErr):
			return nil, bodyError(fmt.Sprintf("request body must be at most %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return nil, bodyError("request body is required")
		case errors.As(err, &typeErr):
			return nil, bodyError("request body must be a JSON object")
		default:
			return nil, bodyError("request body must be valid JSON")
		}
	}

	target := reflect.TypeOf(v).Elem()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var malformed validation.Errors
	for _, name := range names {
		one, err := json.Marshal(map[string]json.RawMessage{name: fields[name]})
		if err != nil {
			return nil, bodyError("request body must be valid JSON")
		}
		if err := json.Unmarshal(one, reflect.New(target).Interface()); err != nil {
			malformed = append(malformed, validation.FieldError{Field: name, Message: wrongType(target, name)})
			delete(fields, name)
		}
	}

	rest, err := json.Marshal(fields)
	if err != nil {
		return nil, bodyError("request body must be valid JSON")
	}
	if err := json.Unmarshal(rest, v); err != nil {
		return nil, bodyError("request body must be valid JSON")
	}
	return malformed, nil
}

// decodeStrict is decodeJSON for bodies without a validation schema of their
// own: wrongly typed fields fail the request.
func decodeStrict(r *http.Request, v interface{}) error {
	malformed, err := decodeJSON(r, v)
	if err != nil {
		return err
	}
	if len(malformed) > 0 {
		return apperr.Validation(malformed)
	}
	return nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// wrongType describes the value the field name of struct type t expects.
func wrongType(t reflect.Type, name string) string {
	ft, ok := jsonFieldType(t, name)
	if !ok {
		return name + " has an invalid value"
	}
	for ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}

	switch {
	case ft == decimalType:
		return name + " must be a number"
	case ft.Kind() == reflect.String:
		return name + " must be a string"
	case ft.Kind() == reflect.Bool:
		return name + " must be true or false"
	case ft.Kind() >= reflect.Int && ft.Kind() <= reflect.Float64:
		return name + " must be a number"
	case ft.Kind() == reflect.Slice:
		return name + " must be a list"
	case ft.Kind() == reflect.Struct, ft.Kind() == reflect.Map:
		return name + " must be an object"
	}
	return name + " has an invalid value"
}

// jsonFieldType finds the field of struct type t decoded from the JSON key
// name, looking through embedded structs.
func jsonFieldType(t reflect.Type, name string) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if f.Anonymous && tag == "" {
			if ft, ok := jsonFieldType(f.Type, name); ok {
				return ft, true
			}
			continue
		}
		if tag == "" {
			tag = f.Name
		}
		if strings.EqualFold(tag, name) {
			return f.Type, true
		}
	}
	return nil, false
}

func bodyError(msg string) error {
	return apperr.Validation(validation.Errors{{Field: "body", Message: msg}})
}

// parseRange reads from/to query parameters. Missing bounds default to the
// month containing today.
func parseRange(r *http.Request, today civil.Date) (domain.DateRange, error) {
	rng := domain.MonthOf(today)
	q := r.URL.Query()

	var errs validation.Errors
	for _, p := range []struct {
		name string
		dst  *civil.Date
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		d, err := civil.ParseDate(raw)
		if err != nil {
			errs = append(errs, validation.FieldError{Field: p.name, Message: p.name + " must be in YYYY-MM-DD format"})
			continue
		}
		*p.dst = d
	}
	if len(errs) == 0 && rng.To.Before(rng.From) {
		errs = append(errs, validation.FieldError{Field: "to", Message: "to must not be before from"})
	}
	if len(errs) > 0 {
		return domain.DateRange{}, apperr.Validation(errs)
	}
	return rng, nil
}
