// Package summary extracts the income and expense totals a provider prints
// above (or, in some spreadsheet exports, below) the transaction table.
package summary

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/billrecon/internal/billreader"
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/provider"
	"github.com/shopspring/decimal"
)

type side struct {
	count  int
	amount decimal.Decimal
	found  bool
}

// Extract scans the document's preamble for the provider's summary lines.
// Spreadsheets fall back to the tail of every sheet when the top rows carry
// no summary. A missing side counts as zero; ErrSummaryNotFound is returned
// only when neither side is found anywhere.
func Extract(doc *billreader.Document, p provider.Provider) (domain.Summary, error) {
	incomeRe, err := regexp.Compile(p.Summary.Income)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("Extract: income pattern: %w", err)
	}
	expenseRe, err := regexp.Compile(p.Summary.Expense)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("Extract: expense pattern: %w", err)
	}

	limit := p.Summary.ScanRows
	if limit <= 0 {
		limit = provider.DefaultScanRows
	}
	head := doc.Preamble
	if len(head) > limit {
		head = head[:limit]
	}

	inc, exp := scan(head, incomeRe), scan(head, expenseRe)
	if !inc.found && !exp.found && doc.Format != billreader.FormatCSV {
		inc, exp = scan(doc.Tail, incomeRe), scan(doc.Tail, expenseRe)
	}
	if !inc.found && !exp.found {
		return domain.Summary{}, fmt.Errorf("Extract: %s: %w", p.Source, domain.ErrSummaryNotFound)
	}

	return domain.Summary{
		Income:       inc.amount,
		Expense:      exp.amount,
		IncomeCount:  inc.count,
		ExpenseCount: exp.count,
		Found:        true,
	}, nil
}

// scan returns the first match in lines.
func scan(lines []string, re *regexp.Regexp) side {
	for _, line := range lines {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		count, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
		if err != nil {
			continue
		}
		return side{count: count, amount: amount, found: true}
	}
	return side{}
}
