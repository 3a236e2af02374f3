// Package reconcile checks an adjusted batch against the provider's declared
// totals and settles manually flagged records into a single residual.
package reconcile

import (
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the accepted absolute difference between the computed
// and the declared balance.
var DefaultTolerance = decimal.New(1, -2)

// Verify compares the gross income and expense of txs against the declared
// summary. Gross means RawAmount: providers declare totals before refunds,
// while records already neutralized by the sign adjuster are excluded on
// both sides. The verdict is advisory and never changes txs.
func Verify(txs []domain.Transaction, s domain.Summary, eps decimal.Decimal) domain.Verdict {
	income, expense := grossTotals(txs)
	actual := income.Sub(expense)

	v := domain.Verdict{
		Actual:  actual,
		Income:  income,
		Expense: expense,
	}
	if !s.Found {
		v.Status = domain.Unverified
		return v
	}

	v.Expected = s.Balance()
	v.Delta = actual.Sub(v.Expected)
	if v.Delta.Abs().LessThanOrEqual(eps) {
		v.Status = domain.Reconciled
	} else {
		v.Status = domain.Discrepancy
	}
	return v
}

func grossTotals(txs []domain.Transaction) (income, expense decimal.Decimal) {
	for _, t := range txs {
		switch t.Direction {
		case domain.Income:
			income = income.Add(t.RawAmount)
		case domain.Expense:
			expense = expense.Add(t.RawAmount)
		}
	}
	return income, expense
}
