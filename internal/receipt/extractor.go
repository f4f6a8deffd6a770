// Package receipt turns a receipt photo into a validated transaction draft
// using a vision model constrained to the caller's own catalogs.
package receipt

import (
	"context"

	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Draft is a validated extraction result. Substituted names the fields whose
// model answer was replaced with a catalog default.
type Draft struct {
	validation.DraftInput
	Substituted []string `json:"substituted,omitempty"`
}

// Extractor calls the vision model exactly once per image.
type Extractor struct {
	catalog   CatalogStore
	model     VisionModel
	validator *validation.Validator
	log       zerolog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(catalog CatalogStore, model VisionModel, v *validation.Validator, log zerolog.Logger) *Extractor {
	return &Extractor{catalog: catalog, model: model, validator: v, log: log}
}

// Extract reads img for userID. Errors are *apperr.Error.
func (e *Extractor) Extract(ctx context.Context, userID string, img Image) (*Draft, error) {
	categories, sources, err := e.loadCatalogs(ctx, userID)
	if err != nil {
		return nil, apperr.Upstream(err)
	}
	if len(categories) == 0 || len(sources) == 0 {
		return nil, apperr.SetupRequired("add at least one category and one payment source before scanning receipts")
	}

	today := e.validator.Today()
	prompt := BuildPrompt(categories, sources, today)

	raw, err := e.model.ExtractReceipt(ctx, prompt, img)
	if err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Msg("Receipt extraction call failed")
		return nil, apperr.Upstream(err)
	}

	reply, err := DecodeReply(raw)
	if err != nil {
		e.log.Warn().Err(err).Str("user_id", userID).Int("reply_len", len(raw)).Msg("Unusable receipt reply")
		return nil, apperr.ExtractionFailed(err)
	}

	input, substituted := Coerce(reply, categories, sources, today)
	if len(substituted) > 0 {
		e.log.Debug().Strs("fields", substituted).Str("user_id", userID).Msg("Substituted catalog defaults")
	}

	input, err = e.validator.ValidateDraft(input)
	if err != nil {
		return nil, apperr.From(err)
	}
	return &Draft{DraftInput: input, Substituted: substituted}, nil
}

func (e *Extractor) loadCatalogs(ctx context.Context, userID string) ([]domain.CatalogEntry, []domain.CatalogEntry, error) {
	var (
		categories []domain.Category
		sources    []domain.PaymentSource
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		categories, err = e.catalog.ListCategories(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		sources, err = e.catalog.ListPaymentSources(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	catEntries := make([]domain.CatalogEntry, 0, len(categories))
	for _, c := range categories {
		catEntries = append(catEntries, c.Entry())
	}
	srcEntries := make([]domain.CatalogEntry, 0, len(sources))
	for _, s := range sources {
		srcEntries = append(srcEntries, s.Entry())
	}
	return catEntries, srcEntries, nil
}
