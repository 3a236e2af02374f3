package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/ledger"
	"github.com/shopspring/decimal"
)

var day = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

func sample(id string, minute int, dir domain.Direction, signed string, method string) domain.Transaction {
	amount := decimal.RequireFromString(signed)
	return domain.Transaction{
		ID:            id,
		Timestamp:     day.Add(time.Duration(minute) * time.Minute),
		Direction:     dir,
		RawAmount:     amount.Abs(),
		SignedAmount:  amount,
		PaymentMethod: method,
		Source:        domain.ProviderB,
	}
}

func batch() []domain.Transaction {
	return []domain.Transaction{
		sample("a", 0, domain.Expense, "-100.00", "零钱"),
		sample("b", 1, domain.Income, "50.00", "零钱"),
		sample("c", 2, domain.Expense, "-20.00", "招商银行"),
	}
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	res, err := s.Save(ctx, batch())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if res.Inserted != 3 || res.Duplicates != 0 {
		t.Errorf("first Save() = %+v, want 3 inserted", res)
	}

	// A re-import assigns fresh IDs but produces the same keys.
	again := batch()
	for i := range again {
		again[i].ID = "re-" + again[i].ID
	}
	res, err = s.Save(ctx, again)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if res.Inserted != 0 || res.Duplicates != 3 {
		t.Errorf("second Save() = %+v, want 3 duplicates", res)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestStore_DedupIgnoresSeconds(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first := sample("a", 0, domain.Expense, "-10.00", "零钱")
	second := first
	second.ID = "b"
	second.Timestamp = first.Timestamp.Add(30 * time.Second)

	res, _ := s.Save(ctx, []domain.Transaction{first, second})
	if res.Inserted != 1 || res.Duplicates != 1 {
		t.Errorf("Save() = %+v, want 1 inserted 1 duplicate", res)
	}
}

func TestStore_SaveAssignsMissingID(t *testing.T) {
	s := NewStore()
	tx := sample("", 0, domain.Expense, "-1.00", "零钱")

	if _, err := s.Save(context.Background(), []domain.Transaction{tx}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	list, _ := s.List(context.Background(), ledger.Filter{})
	if len(list) != 1 || list[0].ID == "" {
		t.Errorf("List() = %+v, want one record with generated ID", list)
	}
}

func TestStore_GetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if _, err := s.Save(ctx, batch()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Direction != domain.Income {
		t.Errorf("Get() direction = %v, want %v", got.Direction, domain.Income)
	}

	got.Category = "Salary"
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = s.Get(ctx, "b")
	if got.Category != "Salary" {
		t.Errorf("Category after Update() = %q, want Salary", got.Category)
	}

	// Moving b onto a's key must fail.
	clash := got
	clash.Timestamp, clash.Direction, clash.SignedAmount = day, domain.Expense, decimal.RequireFromString("-100.00")
	if err := s.Update(ctx, clash); !errors.Is(err, ledger.ErrDuplicate) {
		t.Errorf("Update() error = %v, want ErrDuplicate", err)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
	// The freed key can be saved again.
	res, _ := s.Save(ctx, []domain.Transaction{sample("a2", 0, domain.Expense, "-100.00", "零钱")})
	if res.Inserted != 1 {
		t.Errorf("Save() after Delete() inserted %d, want 1", res.Inserted)
	}

	if err := s.Delete(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, domain.Transaction{ID: "missing"}); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if _, err := s.Save(ctx, batch()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tests := []struct {
		name    string
		filter  ledger.Filter
		wantIDs []string
	}{
		{"all ordered by time", ledger.Filter{}, []string{"a", "b", "c"}},
		{"by direction", ledger.Filter{Direction: domain.Expense}, []string{"a", "c"}},
		{"by payment method", ledger.Filter{PaymentMethod: "招商银行"}, []string{"c"}},
		{"time window", ledger.Filter{From: day.Add(time.Minute), To: day.Add(2 * time.Minute)}, []string{"b"}},
		{"offset and limit", ledger.Filter{Offset: 1, Limit: 1}, []string{"b"}},
		{"offset past end", ledger.Filter{Offset: 5}, []string{}},
		{"other source", ledger.Filter{Source: domain.ProviderA}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("List() returned %d records, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("List()[%d].ID = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}
