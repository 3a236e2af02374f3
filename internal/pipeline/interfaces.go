package pipeline

import (
	"context"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/provider"
)

// BillSource fetches the raw bytes of a bill export by location.
// This interface enables mocking of local and cloud storage in tests.
type BillSource interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// ProviderRegistry resolves provider configurations by source tag or by
// bill filename.
type ProviderRegistry interface {
	Get(source domain.Source) (provider.Provider, error)
	Detect(filename string) (domain.Source, error)
}

// Archiver stores a copy of an imported bill.
type Archiver interface {
	Archive(ctx context.Context, data []byte, uri string) error
}

// Classifier assigns categories to a batch.
type Classifier interface {
	Classify(txs []domain.Transaction) []domain.Transaction
}
