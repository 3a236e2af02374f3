package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/dvloznov/billrecon/internal/category"
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/logger"
	"github.com/dvloznov/billrecon/internal/provider"
	"github.com/dvloznov/billrecon/internal/reconcile"
	"github.com/shopspring/decimal"
)

// Options control a single import.
type Options struct {
	// AllowUnreconciled lets a batch without a summary complete with an
	// Unverified verdict instead of failing with ErrSummaryNotFound.
	AllowUnreconciled bool
}

// Engine runs bill imports. It holds only read-only configuration and is
// safe for concurrent Import calls.
type Engine struct {
	registry   ProviderRegistry
	classifier Classifier
	tolerance  decimal.Decimal
	source     BillSource
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithRegistry replaces the built-in provider registry.
func WithRegistry(r ProviderRegistry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// WithClassifier replaces the default category rules.
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) { e.classifier = c }
}

// WithTolerance sets the reconciliation tolerance.
func WithTolerance(eps decimal.Decimal) EngineOption {
	return func(e *Engine) { e.tolerance = eps }
}

// WithBillSource sets the fetcher used by ImportFile.
func WithBillSource(s BillSource) EngineOption {
	return func(e *Engine) { e.source = s }
}

// NewEngine creates an engine with the built-in providers and category
// rules unless overridden.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		registry:   provider.DefaultRegistry(),
		classifier: category.Default(),
		tolerance:  reconcile.DefaultTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Import runs one bill export through the full pipeline. File-level
// failures (unreadable file, missing columns, missing summary) are returned
// as errors; malformed rows become warnings and a discrepancy is reported in
// the verdict.
func (e *Engine) Import(ctx context.Context, data []byte, filename string, source domain.Source, opts Options) (*domain.ImportResult, error) {
	p, err := e.registry.Get(source)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}

	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"file":   filename,
		"source": string(source),
	})
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{
		Filename: filename,
		Data:     data,
		Provider: p,
		Options:  opts,
	}
	if err := NewImportPipeline(e.classifier, e.tolerance).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Import failed")
		return nil, fmt.Errorf("Import: %s: %w", filename, err)
	}

	event := log.Info()
	if !state.Verdict.OK() {
		event = log.Warn()
	}
	event.
		Int("rows", len(state.Document.Rows)).
		Int("transactions", len(state.Transactions)).
		Int("warnings", len(state.Warnings)).
		Str("verdict", string(state.Verdict.Status)).
		Str("delta", state.Verdict.Delta.StringFixed(2)).
		Msg("Bill imported")

	return &domain.ImportResult{
		Source:       source,
		Transactions: state.Transactions,
		Summary:      state.Summary,
		Verdict:      state.Verdict,
		Warnings:     state.Warnings,
	}, nil
}

// ImportFile fetches a bill through the engine's BillSource and imports it.
func (e *Engine) ImportFile(ctx context.Context, uri string, source domain.Source, opts Options) (*domain.ImportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("ImportFile: no bill source configured")
	}
	data, err := e.source.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("ImportFile: %w", err)
	}
	return e.Import(ctx, data, path.Base(uri), source, opts)
}
