package reconcile

import (
	"fmt"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/shopspring/decimal"
)

// SettleToTarget collapses the flagged records so that the whole batch sums
// to target. The residual is target minus the sum of unflagged records.
func SettleToTarget(txs []domain.Transaction, mask Mask, target decimal.Decimal) ([]domain.Transaction, error) {
	unflagged := decimal.Zero
	for _, t := range txs {
		if !mask.Has(t.Key()) {
			unflagged = unflagged.Add(t.SignedAmount)
		}
	}
	out, err := settle(txs, mask, target.Sub(unflagged))
	if err != nil {
		return nil, fmt.Errorf("SettleToTarget: %w", err)
	}
	return out, nil
}

// SettleNet collapses the flagged records into their own net sum, leaving
// the batch total unchanged.
func SettleNet(txs []domain.Transaction, mask Mask) ([]domain.Transaction, error) {
	net := decimal.Zero
	for _, t := range txs {
		if mask.Has(t.Key()) {
			net = net.Add(t.SignedAmount)
		}
	}
	out, err := settle(txs, mask, net)
	if err != nil {
		return nil, fmt.Errorf("SettleNet: %w", err)
	}
	return out, nil
}

// settle zeroes every flagged record and puts residual on one of them: the
// first whose direction matches the residual's sign, or the first flagged
// record with its direction rewritten when none matches.
func settle(txs []domain.Transaction, mask Mask, residual decimal.Decimal) ([]domain.Transaction, error) {
	want := domain.Income
	if residual.IsNegative() {
		want = domain.Expense
	}

	out := make([]domain.Transaction, len(txs))
	first, match := -1, -1
	for i, t := range txs {
		if mask.Has(t.Key()) {
			if first < 0 {
				first = i
			}
			if match < 0 && t.Direction == want {
				match = i
			}
			t.SignedAmount = decimal.Zero
			t.WriteOff = true
		}
		out[i] = t
	}

	if first < 0 {
		if residual.IsZero() {
			return out, nil
		}
		return nil, fmt.Errorf("residual %s: %w", residual.StringFixed(2), domain.ErrNoFlaggedRecords)
	}

	target := match
	if target < 0 {
		target = first
		out[target].Direction = want
	}
	out[target].SignedAmount = residual
	return out, nil
}
