package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/ledger"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of ledger.Store.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu    sync.RWMutex
	txs   map[string]domain.Transaction
	byKey map[domain.DedupKey]string
}

// NewStore creates an empty ledger.
func NewStore() *Store {
	return &Store{
		txs:   make(map[string]domain.Transaction),
		byKey: make(map[domain.DedupKey]string),
	}
}

// Save implements ledger.Store.
func (s *Store) Save(ctx context.Context, txs []domain.Transaction) (ledger.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ledger.SaveResult
	for _, t := range txs {
		key := t.Key()
		if _, exists := s.byKey[key]; exists {
			res.Duplicates++
			continue
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if _, exists := s.txs[t.ID]; exists {
			return res, fmt.Errorf("Save: id %s already stored under another key", t.ID)
		}
		s.txs[t.ID] = t
		s.byKey[key] = t.ID
		res.Inserted++
	}
	return res, nil
}

// Get implements ledger.Store.
func (s *Store) Get(ctx context.Context, id string) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.txs[id]
	if !exists {
		return domain.Transaction{}, fmt.Errorf("Get: %s: %w", id, ledger.ErrNotFound)
	}
	return t, nil
}

// Update implements ledger.Store.
func (s *Store) Update(ctx context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.txs[tx.ID]
	if !exists {
		return fmt.Errorf("Update: %s: %w", tx.ID, ledger.ErrNotFound)
	}

	oldKey, newKey := old.Key(), tx.Key()
	if oldKey != newKey {
		if other, taken := s.byKey[newKey]; taken && other != tx.ID {
			return fmt.Errorf("Update: %s collides with %s: %w", tx.ID, other, ledger.ErrDuplicate)
		}
		delete(s.byKey, oldKey)
		s.byKey[newKey] = tx.ID
	}
	s.txs[tx.ID] = tx
	return nil
}

// Delete implements ledger.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.txs[id]
	if !exists {
		return fmt.Errorf("Delete: %s: %w", id, ledger.ErrNotFound)
	}
	delete(s.byKey, t.Key())
	delete(s.txs, id)
	return nil
}

// List implements ledger.Store.
func (s *Store) List(ctx context.Context, filter ledger.Filter) ([]domain.Transaction, error) {
	s.mu.RLock()
	result := make([]domain.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		if filter.Matches(t) {
			result = append(result, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].ID < result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Transaction{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Ensure Store implements ledger.Store.
var _ ledger.Store = (*Store)(nil)
