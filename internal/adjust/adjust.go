// Package adjust assigns signed amounts, netting partial refunds and
// neutralizing fully refunded and internal-movement records.
package adjust

import (
	"fmt"
	"regexp"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/provider"
	"github.com/shopspring/decimal"
)

// Rules is the compiled form of provider.SignRules.
type Rules struct {
	partialRefund *regexp.Regexp
	fullRefund    map[string]bool
	neutral       map[string]bool
	exempt        []decimal.Decimal
}

// NewRules compiles sign rules.
func NewRules(sr provider.SignRules) (*Rules, error) {
	r := &Rules{
		fullRefund: toSet(sr.FullRefundStatuses),
		neutral:    toSet(sr.NeutralStatuses),
	}
	if sr.PartialRefundPattern != "" {
		re, err := regexp.Compile(sr.PartialRefundPattern)
		if err != nil {
			return nil, fmt.Errorf("NewRules: partial refund pattern: %w", err)
		}
		r.partialRefund = re
	}
	for _, s := range sr.RefundExemptAmounts {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("NewRules: exempt amount %q: %w", s, err)
		}
		r.exempt = append(r.exempt, d)
	}
	return r, nil
}

// ForProvider compiles the sign rules of a provider.
func ForProvider(p provider.Provider) (*Rules, error) {
	return NewRules(p.Sign)
}

// Adjust returns a copy of txs with SignedAmount (and, for neutralized
// records, Direction) set. The rules are tried in order: partial refund,
// full refund, neutral movement, plain sign by direction.
func Adjust(txs []domain.Transaction, r *Rules) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, t := range txs {
		out[i] = r.apply(t)
	}
	return out
}

func (r *Rules) apply(t domain.Transaction) domain.Transaction {
	if refunded, ok := r.partialRefundAmount(t.Status); ok {
		net := t.RawAmount.Sub(refunded)
		if net.IsNegative() {
			net = decimal.Zero
		}
		t.SignedAmount = signed(t.Direction, net)
		return t
	}

	if r.fullRefund[t.Status] && !r.isExempt(t.RawAmount) {
		t.Direction = domain.Neutral
		t.SignedAmount = decimal.Zero
		return t
	}

	if r.neutral[t.Status] {
		t.Direction = domain.Neutral
		t.SignedAmount = decimal.Zero
		return t
	}

	t.SignedAmount = signed(t.Direction, t.RawAmount)
	return t
}

func (r *Rules) partialRefundAmount(status string) (decimal.Decimal, bool) {
	if r.partialRefund == nil {
		return decimal.Zero, false
	}
	m := r.partialRefund.FindStringSubmatch(status)
	if m == nil || len(m) < 2 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (r *Rules) isExempt(amount decimal.Decimal) bool {
	for _, e := range r.exempt {
		if e.Equal(amount) {
			return true
		}
	}
	return false
}

func signed(dir domain.Direction, amount decimal.Decimal) decimal.Decimal {
	switch dir {
	case domain.Income:
		return amount
	case domain.Expense:
		return amount.Neg()
	}
	return decimal.Zero
}

func toSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, s := range list {
		out[s] = true
	}
	return out
}
