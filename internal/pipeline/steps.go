package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/jobs"
	"github.com/finlog/finlog/internal/validation"
	"github.com/rs/zerolog"
)

// Step 1: ResolveIdentityStep rejects requests without an authenticated user.
type ResolveIdentityStep struct{}

func (s *ResolveIdentityStep) Name() string { return "resolve identity" }

func (s *ResolveIdentityStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.UserID == "" {
		return apperr.Unauthenticated(nil)
	}
	return nil
}

// Step 2: ValidateStep normalises the submission and builds the record to write.
type ValidateStep struct {
	Validator *validation.Validator
}

func (s *ValidateStep) Name() string { return "validate" }

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	var in validation.CreateInput

	switch state.Op {
	case OpCreate:
		out, err := s.Validator.ValidateCreate(state.Create)
		if err != nil {
			return apperr.From(err)
		}
		state.Create = out
		in = out
	case OpUpdate:
		out, err := s.Validator.ValidateUpdate(state.TargetID, state.Update)
		if err != nil {
			return apperr.From(err)
		}
		state.Update = out
		in = out.CreateInput
	case OpDelete:
		if msg := validation.CheckUUID(state.TargetID); msg != "" {
			return apperr.Validation(validation.Errors{{Field: "id", Message: msg}})
		}
		return nil
	default:
		return apperr.Internal(fmt.Errorf("unknown operation %q", state.Op))
	}

	record, err := recordFrom(in)
	if err != nil {
		return apperr.Internal(err)
	}
	record.ID = state.TargetID
	record.UserID = state.UserID
	state.Record = record
	return nil
}

// Step 3: VerifyReferencesStep confirms the category and payment source
// belong to the caller. Deletes carry no references.
type VerifyReferencesStep struct {
	Checker *IntegrityChecker
}

func (s *VerifyReferencesStep) Name() string { return "verify references" }

func (s *VerifyReferencesStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Op == OpDelete {
		return nil
	}
	refs, err := s.Checker.Verify(ctx, state.UserID, state.Record.CategoryID, state.Record.PaymentSourceID)
	if err != nil {
		return apperr.Upstream(err)
	}
	if !refs.OK() {
		return apperr.InvalidReference(refs.Missing()...)
	}
	return nil
}

// Step 4: AuthorizeOwnerStep loads the target of an update or delete and
// rejects it when another user owns it.
type AuthorizeOwnerStep struct {
	Store TransactionStore
}

func (s *AuthorizeOwnerStep) Name() string { return "authorize owner" }

func (s *AuthorizeOwnerStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Op == OpCreate {
		return nil
	}
	existing, err := s.Store.GetByID(ctx, state.TargetID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apperr.NotFound("transaction")
	case err != nil:
		return apperr.Upstream(err)
	case existing.UserID != state.UserID:
		return apperr.Forbidden()
	}
	state.Existing = existing
	return nil
}

// Step 5: PersistStep writes the record.
type PersistStep struct {
	Store TransactionStore
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	var (
		out *domain.Transaction
		err error
	)
	switch state.Op {
	case OpCreate:
		out, err = s.Store.Insert(ctx, state.Record)
	case OpUpdate:
		out, err = s.Store.Update(ctx, state.Record)
	case OpDelete:
		err = s.Store.Delete(ctx, state.UserID, state.TargetID)
	}
	if err != nil {
		return persistError(err)
	}
	state.Result = out
	return nil
}

func persistError(err error) error {
	var refErr *domain.ReferenceError
	switch {
	case errors.As(err, &refErr):
		return apperr.InvalidReference(refErr.Field)
	case errors.Is(err, domain.ErrNotFound):
		return apperr.NotFound("transaction")
	default:
		return apperr.Upstream(err)
	}
}

// publishTimeout bounds how long a request waits on a full export queue.
const publishTimeout = 250 * time.Millisecond

// Step 6: PublishExportStep enqueues the change for the export mirrors.
// Failures are logged and never fail the request.
type PublishExportStep struct {
	Publisher jobs.Publisher
	Log       zerolog.Logger
}

func (s *PublishExportStep) Name() string { return "publish export" }

func (s *PublishExportStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Publisher == nil {
		return nil
	}

	job := &jobs.ExportTransactionJob{
		UserID:        state.UserID,
		TransactionID: state.TargetID,
		Action:        jobs.ExportDelete,
	}
	if state.Result != nil {
		job.TransactionID = state.Result.ID
		job.Action = jobs.ExportUpsert
		job.Transaction = state.Result
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.Publisher.PublishExport(pctx, job); err != nil {
		s.Log.Warn().Err(err).
			Str("transaction_id", job.TransactionID).
			Str("action", string(job.Action)).
			Msg("Failed to enqueue export job")
	}
	return nil
}

func recordFrom(in validation.CreateInput) (domain.Transaction, error) {
	if in.Amount == nil {
		return domain.Transaction{}, errors.New("validated input has no amount")
	}
	date, err := civil.ParseDate(in.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("validated input has bad date: %w", err)
	}
	return domain.Transaction{
		Amount:          *in.Amount,
		Type:            domain.TransactionType(in.Type),
		Date:            date,
		CategoryID:      in.Category,
		PaymentSourceID: in.PaymentSource,
		Notes:           in.Notes,
		ImageURL:        in.ImageURL,
	}, nil
}
