// Package validation checks transaction submissions from users and from
// receipt extraction. Every violation in a submission is reported, not just
// the first one.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/sanitize"
	"github.com/go-playground/validator/v10"
)

// Validator validates and normalises the three transaction record shapes.
// It is safe for concurrent use.
type Validator struct {
	engine *validator.Validate
	now    func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock replaces the clock used to compute "today".
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New builds a Validator with the transaction rules registered.
func New(opts ...Option) *Validator {
	v := &Validator{
		engine: validator.New(validator.WithRequiredStructEnabled()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	// Report JSON names so messages match what the client sent.
	v.engine.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.engine.RegisterValidation("anyuuid", func(fl validator.FieldLevel) bool {
		return IsUUID(fl.Field().String())
	})
	v.engine.RegisterStructValidation(v.createRules, CreateInput{})
	v.engine.RegisterStructValidation(v.draftRules, DraftInput{})

	return v
}

// Today returns the current calendar date according to the validator's clock.
func (v *Validator) Today() civil.Date {
	return civil.DateOf(v.now())
}

// ValidateCreate normalises in and checks it against the create rules.
// The returned error is nil or Errors.
func (v *Validator) ValidateCreate(in CreateInput) (CreateInput, error) {
	in = normalizeCreate(in)
	if err := v.run(in, in.DecodeErrors...); err != nil {
		return in, err
	}
	return scaleAmount(in), nil
}

// ValidateUpdate normalises in and checks it against the update rules for
// the transaction identified by routeID.
func (v *Validator) ValidateUpdate(routeID string, in UpdateInput) (UpdateInput, error) {
	in.CreateInput = normalizeCreate(in.CreateInput)

	var extra Errors
	switch {
	case !IsUUID(routeID):
		extra = append(extra, FieldError{Field: "id", Message: message("anyuuid", "id", "")})
	case in.ID != nil && IsUUID(*in.ID) && !strings.EqualFold(*in.ID, routeID):
		extra = append(extra, FieldError{Field: "id", Message: message(tagIDMismatch, "id", "")})
	}

	extra = append(extra, in.DecodeErrors...)
	if err := v.run(in, extra...); err != nil {
		return in, err
	}
	in.CreateInput = scaleAmount(in.CreateInput)
	return in, nil
}

// ValidateDraft fills draft defaults and checks the result against the
// receipt extraction rules.
func (v *Validator) ValidateDraft(in DraftInput) (DraftInput, error) {
	in.Amount = roundDraftAmount(in.Amount)
	if in.Date == "" {
		in.Date = v.Today().String()
	}
	if in.Type == "" {
		in.Type = "expense"
	}
	in.Notes = sanitize.Notes(in.Notes)
	return in, v.run(in)
}

// ValidateCatalog sanitises and checks a new category or payment source.
func (v *Validator) ValidateCatalog(in CatalogInput) (CatalogInput, error) {
	in.Name = sanitize.Text(in.Name)
	if in.Color != nil {
		c := strings.TrimSpace(*in.Color)
		if c == "" {
			in.Color = nil
		} else {
			in.Color = &c
		}
	}
	return in, v.run(in, in.DecodeErrors...)
}

// run checks in with the engine. Violations in extra take the place of any
// the engine reports for the same field.
func (v *Validator) run(in any, extra ...FieldError) error {
	out := append(Errors(nil), extra...)
	reported := make(map[string]bool, len(extra))
	for _, fe := range extra {
		reported[fe.Field] = true
	}

	err := v.engine.Struct(in)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if f := fromFieldError(fe); !reported[f.Field] {
				out = append(out, f)
			}
		}
	} else if err != nil {
		return err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return fieldOrder[out[i].Field] < fieldOrder[out[j].Field]
	})
	return out.orNil()
}

func (v *Validator) createRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(CreateInput)
	today := v.Today()

	if tag := amountRule(in.Amount); tag != "" {
		sl.ReportError(in.Amount, "amount", "Amount", tag, "")
	}
	if tag := dateRule(in.Date, today); tag != "" {
		sl.ReportError(in.Date, "date", "Date", tag, MaxDate(today).String())
	}
}

func (v *Validator) draftRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(DraftInput)
	today := v.Today()

	if tag := draftAmountRule(in.Amount); tag != "" {
		sl.ReportError(in.Amount, "amount", "Amount", tag, "")
	}
	if tag := dateRule(in.Date, today); tag != "" {
		sl.ReportError(in.Date, "date", "Date", tag, MaxDate(today).String())
	}
}

// scaleAmount fixes a validated amount at AmountPlaces, so 12.5 is stored as 12.50.
func scaleAmount(in CreateInput) CreateInput {
	scaled := in.Amount.Round(AmountPlaces)
	in.Amount = &scaled
	return in
}

func normalizeCreate(in CreateInput) CreateInput {
	in.Notes = sanitize.Notes(in.Notes)
	if in.ImageURL != nil {
		u := strings.TrimSpace(*in.ImageURL)
		if u == "" {
			in.ImageURL = nil
		} else {
			in.ImageURL = &u
		}
	}
	in.UserID = ""
	return in
}
