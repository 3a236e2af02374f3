// Package normalize maps provider-native bill rows onto domain transactions.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/logger"
	"github.com/dvloznov/billrecon/internal/provider"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	errEmptyAmount    = errors.New("empty amount")
	errEmptyTimestamp = errors.New("empty timestamp")
)

// Normalize converts raw rows into transactions with RawAmount set and
// SignedAmount left zero for the sign adjuster. Rows on the provider's drop
// lists are discarded silently; rows whose amount or timestamp does not parse
// are skipped and reported as MalformedRow warnings.
func Normalize(ctx context.Context, rows []domain.RawRow, p provider.Provider) ([]domain.Transaction, []domain.Warning) {
	log := logger.FromContext(ctx)
	label := labels(p)
	loc := p.Location()

	txs := make([]domain.Transaction, 0, len(rows))
	var warnings []domain.Warning

	for _, row := range rows {
		status := row.Get(label[provider.FieldStatus])
		dirLabel := row.Get(label[provider.FieldDirection])
		if p.Dropped(status, dirLabel) {
			log.Debug().
				Int("row_index", row.Index).
				Str("status", status).
				Str("direction", dirLabel).
				Msg("Dropping filtered row")
			continue
		}

		amount, err := ParseAmount(row.Get(label[provider.FieldAmount]))
		if err != nil {
			warnings = append(warnings, malformed(row, fmt.Sprintf("amount: %v", err)))
			continue
		}
		ts, err := ParseTime(row.Get(label[provider.FieldTimestamp]), p.TimeLayouts, loc)
		if err != nil {
			warnings = append(warnings, malformed(row, fmt.Sprintf("timestamp: %v", err)))
			continue
		}

		dir := p.DirectionOf(dirLabel)
		method := RepairPaymentMethod(row.Get(label[provider.FieldPaymentMethod]), dir, status, p.Payment)

		txs = append(txs, domain.Transaction{
			ID:            uuid.New().String(),
			Timestamp:     ts,
			Direction:     dir,
			Counterparty:  row.Get(label[provider.FieldCounterparty]),
			Description:   row.Get(label[provider.FieldDescription]),
			Kind:          row.Get(label[provider.FieldKind]),
			RawAmount:     amount,
			PaymentMethod: method,
			Status:        status,
			Source:        p.Source,
		})
	}

	for _, w := range warnings {
		log.Warn().
			Int("row_index", w.RowIndex).
			Int("line", w.Line).
			Str("reason", w.Reason).
			Msg("Skipping malformed row")
	}
	return txs, warnings
}

// labels indexes the provider's native labels by canonical field.
func labels(p provider.Provider) map[string]string {
	out := make(map[string]string, len(p.Columns))
	for _, c := range p.Columns {
		out[c.Field] = c.Label
	}
	return out
}

func malformed(row domain.RawRow, reason string) domain.Warning {
	return domain.Warning{
		Kind:     domain.MalformedRow,
		RowIndex: row.Index,
		Line:     row.Line,
		Reason:   reason,
	}
}

// ParseAmount parses a printed amount, ignoring currency glyphs, thousands
// separators and sign. The result is non-negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("¥", "", "￥", "", ",", "", "，", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return decimal.Zero, errEmptyAmount
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d.Abs(), nil
}

// ParseTime tries each layout in order, interpreting the text in loc.
func ParseTime(s string, layouts []string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyTimestamp
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// RepairPaymentMethod applies the provider's payment method quirks.
func RepairPaymentMethod(method string, dir domain.Direction, status string, rules provider.PaymentRules) string {
	if rules.MultiAccountSeparator != "" {
		if i := strings.Index(method, rules.MultiAccountSeparator); i >= 0 {
			// Only the first account of a split payment is kept.
			method = strings.TrimSpace(method[:i])
		}
	}
	if method == "" && dir == domain.Income && rules.DefaultIncomeAccount != "" {
		method = rules.DefaultIncomeAccount
	}
	if rules.Placeholder != "" && method == rules.Placeholder && status == rules.WalletStatus && rules.WalletAccount != "" {
		method = rules.WalletAccount
	}
	return method
}
