package pipeline

import (
	"context"

	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/jobs"
	"github.com/finlog/finlog/internal/validation"
	"github.com/rs/zerolog"
)

// Service runs transaction writes through the intake pipeline. Every
// returned error is an *apperr.Error.
type Service struct {
	validator *validation.Validator
	create    *Pipeline
	update    *Pipeline
	delete    *Pipeline
}

// NewService wires the create, update and delete pipelines. publisher may be
// nil when no export sink is configured.
func NewService(store TransactionStore, refs ReferenceStore, v *validation.Validator, publisher jobs.Publisher, log zerolog.Logger) *Service {
	identity := &ResolveIdentityStep{}
	validate := &ValidateStep{Validator: v}
	references := &VerifyReferencesStep{Checker: NewIntegrityChecker(refs)}
	owner := &AuthorizeOwnerStep{Store: store}
	persist := &PersistStep{Store: store}
	publish := &PublishExportStep{Publisher: publisher, Log: log}

	return &Service{
		validator: v,
		create:    NewPipeline(identity, validate, references, persist, publish),
		update:    NewPipeline(identity, validate, references, owner, persist, publish),
		delete:    NewPipeline(identity, validate, owner, persist, publish),
	}
}

// Create validates in and stores it for userID.
func (s *Service) Create(ctx context.Context, userID string, in validation.CreateInput) (*domain.Transaction, error) {
	state := &PipelineState{Op: OpCreate, UserID: userID, Create: in}
	if err := s.create.Execute(ctx, state); err != nil {
		return nil, apperr.From(err)
	}
	return state.Result, nil
}

// Update replaces the caller's transaction id with in.
func (s *Service) Update(ctx context.Context, userID, id string, in validation.UpdateInput) (*domain.Transaction, error) {
	state := &PipelineState{Op: OpUpdate, UserID: userID, TargetID: id, Update: in}
	if err := s.update.Execute(ctx, state); err != nil {
		return nil, apperr.From(err)
	}
	return state.Result, nil
}

// Delete removes the caller's transaction id.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	state := &PipelineState{Op: OpDelete, UserID: userID, TargetID: id}
	if err := s.delete.Execute(ctx, state); err != nil {
		return apperr.From(err)
	}
	return nil
}

// CreateFromDraft saves a reviewed receipt draft dated today.
func (s *Service) CreateFromDraft(ctx context.Context, userID string, draft validation.DraftInput) (*domain.Transaction, error) {
	return s.Create(ctx, userID, draft.ToCreate(s.validator.Today().String()))
}
