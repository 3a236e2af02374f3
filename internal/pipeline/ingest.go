package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/dvloznov/billrecon/internal/category"
	"github.com/dvloznov/billrecon/internal/config"
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/ledger"
	"github.com/dvloznov/billrecon/internal/logger"
	"github.com/dvloznov/billrecon/internal/provider"
)

// NewEngineFromConfig builds an engine using the provider and category
// overrides named in cfg.
func NewEngineFromConfig(cfg config.Config, src BillSource) (*Engine, error) {
	opts := []EngineOption{WithTolerance(cfg.Tolerance)}
	if src != nil {
		opts = append(opts, WithBillSource(src))
	}
	if cfg.ProvidersFile != "" {
		reg, err := provider.LoadFile(cfg.ProvidersFile)
		if err != nil {
			return nil, fmt.Errorf("NewEngineFromConfig: %w", err)
		}
		opts = append(opts, WithRegistry(reg))
	}
	if cfg.RulesFile != "" {
		c, err := category.LoadFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("NewEngineFromConfig: %w", err)
		}
		opts = append(opts, WithClassifier(c))
	}
	return NewEngine(opts...), nil
}

// Detect infers the provider of a bill from its filename.
func (e *Engine) Detect(filename string) (domain.Source, error) {
	return e.registry.Detect(path.Base(filename))
}

// IngestOptions control a single Ingest call.
type IngestOptions struct {
	Options
	// Source is the provider; empty means detect from the filename.
	Source domain.Source
	// Strict refuses to persist a batch whose verdict is a discrepancy.
	Strict bool
	// ArchiveTo, when set, receives a copy of the bill after it is saved.
	ArchiveTo string
}

// IngestResult is the outcome of importing and persisting one bill.
type IngestResult struct {
	URI    string
	Import *domain.ImportResult
	Saved  ledger.SaveResult
}

// Ingester imports bills and persists them to a ledger.
type Ingester struct {
	engine   *Engine
	store    ledger.Store
	archiver Archiver
}

// NewIngester creates an Ingester. archiver may be nil when bills are never
// archived. The engine must have a BillSource.
func NewIngester(engine *Engine, store ledger.Store, archiver Archiver) *Ingester {
	return &Ingester{engine: engine, store: store, archiver: archiver}
}

// Ingest fetches the bill at uri, imports it and saves the transactions.
// Re-ingesting the same bill stores nothing new.
func (in *Ingester) Ingest(ctx context.Context, uri string, opts IngestOptions) (*IngestResult, error) {
	log := logger.FromContext(ctx)

	if in.engine.source == nil {
		return nil, fmt.Errorf("Ingest: no bill source configured")
	}

	source := opts.Source
	if source == "" {
		detected, err := in.engine.Detect(uri)
		if err != nil {
			return nil, fmt.Errorf("Ingest: %w", err)
		}
		source = detected
	}

	data, err := in.engine.source.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("Ingest: %w", err)
	}

	res, err := in.engine.Import(ctx, data, path.Base(uri), source, opts.Options)
	if err != nil {
		return nil, fmt.Errorf("Ingest: %w", err)
	}
	if opts.Strict {
		if err := res.Err(); err != nil {
			return &IngestResult{URI: uri, Import: res}, fmt.Errorf("Ingest: %s: %w", uri, err)
		}
	}

	saved, err := in.store.Save(ctx, res.Transactions)
	if err != nil {
		return nil, fmt.Errorf("Ingest: saving transactions: %w", err)
	}

	log.Info().
		Str("uri", uri).
		Int("inserted", saved.Inserted).
		Int("duplicates", saved.Duplicates).
		Msg("Bill saved to ledger")

	if opts.ArchiveTo != "" && in.archiver != nil {
		if err := in.archiver.Archive(ctx, data, opts.ArchiveTo); err != nil {
			return nil, fmt.Errorf("Ingest: archiving to %s: %w", opts.ArchiveTo, err)
		}
		log.Debug().Str("archive", opts.ArchiveTo).Msg("Bill archived")
	}

	return &IngestResult{URI: uri, Import: res, Saved: saved}, nil
}
