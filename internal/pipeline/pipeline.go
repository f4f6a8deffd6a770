// Package pipeline turns untrusted transaction submissions into persisted
// records. Each request runs a fixed sequence of steps and ends in exactly
// one terminal outcome.
package pipeline

import (
	"context"
	"fmt"

	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/validation"
)

// Operation is the kind of change a request makes.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// PipelineStep represents a single step in the intake pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Op     Operation
	UserID string
	// TargetID is the route id for updates and deletes.
	TargetID string

	Create validation.CreateInput
	Update validation.UpdateInput

	// Record is the validated transaction about to be written.
	Record   domain.Transaction
	Existing *domain.Transaction
	Result   *domain.Transaction
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for _, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("%s %s: %w", state.Op, step.Name(), err)
		}
	}
	return nil
}
