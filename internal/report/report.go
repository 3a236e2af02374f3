// Package report summarizes a reconciled ledger: totals, period and
// category breakdowns, the largest expenses and per-account balances.
package report

import (
	"fmt"
	"sort"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/shopspring/decimal"
)

// Period is the bucket size for ByPeriod.
type Period string

const (
	Monthly   Period = "monthly"
	Quarterly Period = "quarterly"
	Annual    Period = "annual"
)

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case Monthly, Quarterly, Annual:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Summary is income, expense and balance over a set of records. Expense is
// reported as a positive magnitude.
type Summary struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
	Count   int
}

func (s *Summary) add(t domain.Transaction) {
	switch t.Direction {
	case domain.Income:
		s.Income = s.Income.Add(t.SignedAmount)
	case domain.Expense:
		s.Expense = s.Expense.Sub(t.SignedAmount)
	}
	s.Balance = s.Income.Sub(s.Expense)
	s.Count++
}

// Totals sums signed amounts over all records.
func Totals(txs []domain.Transaction) Summary {
	var s Summary
	for _, t := range txs {
		s.add(t)
	}
	return s
}

// PeriodTotal is the Summary of one period bucket.
type PeriodTotal struct {
	Period string // "2024-01", "2024-Q1" or "2024"
	Summary
}

// ByPeriod buckets records by calendar period in each record's own time
// zone, ordered chronologically.
func ByPeriod(txs []domain.Transaction, p Period) []PeriodTotal {
	buckets := make(map[string]*Summary)
	for _, t := range txs {
		key := periodKey(t, p)
		s, ok := buckets[key]
		if !ok {
			s = &Summary{}
			buckets[key] = s
		}
		s.add(t)
	}

	out := make([]PeriodTotal, 0, len(buckets))
	for k, s := range buckets {
		out = append(out, PeriodTotal{Period: k, Summary: *s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

func periodKey(t domain.Transaction, p Period) string {
	ts := t.Timestamp
	switch p {
	case Annual:
		return fmt.Sprintf("%04d", ts.Year())
	case Quarterly:
		return fmt.Sprintf("%04d-Q%d", ts.Year(), (int(ts.Month())-1)/3+1)
	}
	return ts.Format("2006-01")
}

// CategoryTotal is the magnitude spent (or received) in one category.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
	Count    int
	Share    decimal.Decimal // fraction of the direction's total, 0..1
}

// ByCategory sums magnitudes per category for one direction, largest first.
func ByCategory(txs []domain.Transaction, dir domain.Direction) []CategoryTotal {
	sums := make(map[string]*CategoryTotal)
	total := decimal.Zero
	for _, t := range txs {
		if t.Direction != dir {
			continue
		}
		amount := t.SignedAmount.Abs()
		c, ok := sums[t.Category]
		if !ok {
			c = &CategoryTotal{Category: t.Category}
			sums[t.Category] = c
		}
		c.Amount = c.Amount.Add(amount)
		c.Count++
		total = total.Add(amount)
	}

	out := make([]CategoryTotal, 0, len(sums))
	for _, c := range sums {
		if !total.IsZero() {
			c.Share = c.Amount.Div(total)
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// RankedExpense is one entry of TopExpenses.
type RankedExpense struct {
	Transaction domain.Transaction
	Amount      decimal.Decimal
	// CumulativeShare is the running fraction of total expense covered by
	// this and all larger entries.
	CumulativeShare decimal.Decimal
}

// TopExpenses returns the n largest expenses with their cumulative share of
// total expense. n <= 0 returns all expenses.
func TopExpenses(txs []domain.Transaction, n int) []RankedExpense {
	var expenses []domain.Transaction
	total := decimal.Zero
	for _, t := range txs {
		if t.Direction == domain.Expense && !t.SignedAmount.IsZero() {
			expenses = append(expenses, t)
			total = total.Add(t.SignedAmount.Abs())
		}
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].SignedAmount.Abs().GreaterThan(expenses[j].SignedAmount.Abs())
	})
	if n > 0 && n < len(expenses) {
		expenses = expenses[:n]
	}

	out := make([]RankedExpense, len(expenses))
	running := decimal.Zero
	for i, t := range expenses {
		amount := t.SignedAmount.Abs()
		running = running.Add(amount)
		out[i] = RankedExpense{
			Transaction:     t,
			Amount:          amount,
			CumulativeShare: running.Div(total),
		}
	}
	return out
}

// AccountBalance is the net signed flow through one payment method, used to
// cross-check a bank or card statement.
func AccountBalance(txs []domain.Transaction, paymentMethod string) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		if t.PaymentMethod == paymentMethod {
			sum = sum.Add(t.SignedAmount)
		}
	}
	return sum
}

// Accounts lists the payment methods present, sorted.
func Accounts(txs []domain.Transaction) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range txs {
		if t.PaymentMethod != "" && !seen[t.PaymentMethod] {
			seen[t.PaymentMethod] = true
			out = append(out, t.PaymentMethod)
		}
	}
	sort.Strings(out)
	return out
}
