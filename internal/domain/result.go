package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Summary holds the income and expense totals a provider declares in the
// bill preamble or footer.
type Summary struct {
	Income       decimal.Decimal
	Expense      decimal.Decimal
	IncomeCount  int
	ExpenseCount int
	Found        bool // false when the caller proceeded without a summary
}

// Balance is the declared net: income minus expense.
func (s Summary) Balance() decimal.Decimal {
	return s.Income.Sub(s.Expense)
}

// VerdictStatus is the outcome of reconciliation.
type VerdictStatus string

const (
	// Reconciled means computed totals match the declared balance within tolerance.
	Reconciled VerdictStatus = "reconciled"
	// Discrepancy means computed totals differ from the declared balance.
	Discrepancy VerdictStatus = "discrepancy"
	// Unverified means no summary was available to reconcile against.
	Unverified VerdictStatus = "unverified"
)

// Verdict is the result of comparing a batch against its declared summary.
type Verdict struct {
	Status   VerdictStatus
	Expected decimal.Decimal // declared balance
	Actual   decimal.Decimal // computed income - expense
	Delta    decimal.Decimal // actual - expected
	Income   decimal.Decimal // computed gross income
	Expense  decimal.Decimal // computed gross expense
}

// OK reports whether the verdict is Reconciled.
func (v Verdict) OK() bool {
	return v.Status == Reconciled
}

func (v Verdict) String() string {
	switch v.Status {
	case Discrepancy:
		return fmt.Sprintf("discrepancy: expected %s, actual %s, delta %s",
			v.Expected.StringFixed(2), v.Actual.StringFixed(2), v.Delta.StringFixed(2))
	case Unverified:
		return fmt.Sprintf("unverified: actual %s", v.Actual.StringFixed(2))
	}
	return fmt.Sprintf("reconciled: balance %s", v.Actual.StringFixed(2))
}

// ImportResult is everything the engine returns for one bill file.
// The caller owns it; the engine keeps no reference.
type ImportResult struct {
	Source       Source
	Transactions []Transaction
	Summary      Summary
	Verdict      Verdict
	Warnings     []Warning
}

// Err returns ErrDiscrepancy (wrapped with the figures) when the batch did not
// reconcile, for pipelines that treat discrepancies as blocking.
func (r *ImportResult) Err() error {
	if r.Verdict.Status == Discrepancy {
		return fmt.Errorf("%w: %s", ErrDiscrepancy, r.Verdict)
	}
	return nil
}

// Totals sums signed amounts by direction.
func Totals(txs []Transaction) (income, expense decimal.Decimal) {
	for _, t := range txs {
		switch t.Direction {
		case Income:
			income = income.Add(t.SignedAmount)
		case Expense:
			expense = expense.Add(t.SignedAmount.Neg())
		}
	}
	return income, expense
}

// Net is the sum of all signed amounts.
func Net(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.SignedAmount)
	}
	return sum
}
