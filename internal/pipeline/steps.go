package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/billrecon/internal/adjust"
	"github.com/dvloznov/billrecon/internal/billreader"
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/logger"
	"github.com/dvloznov/billrecon/internal/normalize"
	"github.com/dvloznov/billrecon/internal/provider"
	"github.com/dvloznov/billrecon/internal/reconcile"
	"github.com/dvloznov/billrecon/internal/summary"
	"github.com/shopspring/decimal"
)

// PipelineStep represents a single stage of a bill import.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the values passed between steps for one batch.
type PipelineState struct {
	Filename string
	Data     []byte
	Provider provider.Provider
	Options  Options

	Document     *billreader.Document
	Summary      domain.Summary
	Transactions []domain.Transaction
	Warnings     []domain.Warning
	Verdict      domain.Verdict
}

// Step 1: ReadStep decodes the file into a header-keyed table.
type ReadStep struct{}

func (s *ReadStep) Execute(ctx context.Context, state *PipelineState) error {
	doc, err := billreader.Read(state.Data, state.Filename, state.Provider)
	if err != nil {
		return err
	}
	state.Document = doc
	return nil
}

// Step 2: ExtractSummaryStep finds the declared totals.
type ExtractSummaryStep struct{}

func (s *ExtractSummaryStep) Execute(ctx context.Context, state *PipelineState) error {
	sum, err := summary.Extract(state.Document, state.Provider)
	if errors.Is(err, domain.ErrSummaryNotFound) && state.Options.AllowUnreconciled {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("file", state.Filename).
			Msg("No summary found, continuing unverified")
		state.Summary = domain.Summary{}
		return nil
	}
	if err != nil {
		return err
	}
	state.Summary = sum
	return nil
}

// Step 3: NormalizeStep maps rows onto transactions.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, warnings := normalize.Normalize(ctx, state.Document.Rows, state.Provider)
	state.Transactions = txs
	state.Warnings = append(state.Warnings, warnings...)
	return nil
}

// Step 4: AdjustStep assigns signed amounts.
type AdjustStep struct{}

func (s *AdjustStep) Execute(ctx context.Context, state *PipelineState) error {
	rules, err := adjust.ForProvider(state.Provider)
	if err != nil {
		return err
	}
	state.Transactions = adjust.Adjust(state.Transactions, rules)
	return nil
}

// Step 5: ClassifyStep assigns categories.
type ClassifyStep struct {
	Classifier Classifier
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Transactions = s.Classifier.Classify(state.Transactions)
	return nil
}

// Step 6: VerifyStep reconciles against the declared summary.
type VerifyStep struct {
	Tolerance decimal.Decimal
}

func (s *VerifyStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Verdict = reconcile.Verify(state.Transactions, state.Summary, s.Tolerance)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially, stopping at the first
// failure or when ctx is cancelled.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d cancelled: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewImportPipeline creates the standard six-step import pipeline.
func NewImportPipeline(classifier Classifier, tolerance decimal.Decimal) *Pipeline {
	return NewPipeline(
		&ReadStep{},
		&ExtractSummaryStep{},
		&NormalizeStep{},
		&AdjustStep{},
		&ClassifyStep{Classifier: classifier},
		&VerifyStep{Tolerance: tolerance},
	)
}
