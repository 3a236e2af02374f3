// Package ledger defines persistence for normalized transactions.
// The import engine never writes to a ledger itself; callers hand it the
// reconciled batch.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
)

var (
	// ErrNotFound is returned when no record has the requested ID.
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicate is returned when an update would collide with another
	// record's de-duplication key.
	ErrDuplicate = errors.New("duplicate transaction")
)

// SaveResult reports how a batch was persisted.
type SaveResult struct {
	Inserted   int
	Duplicates int
}

// Filter narrows List results. Zero-valued fields do not filter.
type Filter struct {
	Source        domain.Source
	Direction     domain.Direction
	Category      string
	PaymentMethod string

	// From is inclusive, To is exclusive.
	From time.Time
	To   time.Time

	Limit  int
	Offset int
}

// Store persists transactions keyed by ID, de-duplicating on DedupKey.
type Store interface {
	// Save inserts records whose DedupKey is not yet stored. Re-saving the
	// same batch inserts nothing.
	Save(ctx context.Context, txs []domain.Transaction) (SaveResult, error)

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (domain.Transaction, error)

	// Update replaces a stored record.
	Update(ctx context.Context, tx domain.Transaction) error

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// List returns records ordered by timestamp.
	List(ctx context.Context, filter Filter) ([]domain.Transaction, error)
}

// Matches reports whether t passes the filter's field criteria.
func (f Filter) Matches(t domain.Transaction) bool {
	if f.Source != "" && t.Source != f.Source {
		return false
	}
	if f.Direction != "" && t.Direction != f.Direction {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.PaymentMethod != "" && t.PaymentMethod != f.PaymentMethod {
		return false
	}
	if !f.From.IsZero() && t.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Timestamp.Before(f.To) {
		return false
	}
	return true
}
