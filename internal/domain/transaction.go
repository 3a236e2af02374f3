package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the flow direction of a transaction.
type Direction string

const (
	// Income is money received.
	Income Direction = "income"
	// Expense is money spent.
	Expense Direction = "expense"
	// Neutral marks transfers, top-ups and refund artifacts that count toward
	// neither income nor expense totals.
	Neutral Direction = "neutral"
)

// Source identifies the payment provider a batch was exported from.
type Source string

const (
	// ProviderA is the Alipay bill export.
	ProviderA Source = "alipay"
	// ProviderB is the WeChat Pay bill export.
	ProviderB Source = "wechat"
)

// RawRow is one data row of the bill table exactly as read, keyed by the
// provider-native column label.
type RawRow struct {
	Index  int               // 0-based position among the table's data rows
	Line   int               // 1-based line (or sheet row) in the source file
	Cells  map[string]string // native label -> trimmed cell text
	Labels []string          // header labels in file order
}

// Get returns the cell under a native label, or "" if the column is absent.
func (r RawRow) Get(label string) string {
	return r.Cells[label]
}

// Transaction represents one normalized bill record.
// Values are copied between pipeline stages; a stage never mutates the slice
// it received.
type Transaction struct {
	ID string // assigned at normalization

	Timestamp    time.Time
	Direction    Direction
	Counterparty string // may be empty
	Description  string // goods / memo
	Kind         string // provider-native transaction type, optional

	RawAmount    decimal.Decimal // non-negative, as printed
	SignedAmount decimal.Decimal // + income, - expense, 0 neutral

	PaymentMethod string
	Status        string // provider-native settlement status, kept for audit
	Category      string
	Source        Source

	WriteOff bool // set only by the write-off settler
}

// DedupKey identifies a record for idempotent persistence: timestamp truncated
// to the minute, direction, signed amount and payment method.
type DedupKey string

// Key returns the transaction's de-duplication key.
func (t Transaction) Key() DedupKey {
	return NewDedupKey(t.Timestamp, t.Direction, t.SignedAmount, t.PaymentMethod)
}

// NewDedupKey builds a DedupKey from its parts.
func NewDedupKey(ts time.Time, dir Direction, signed decimal.Decimal, paymentMethod string) DedupKey {
	return DedupKey(fmt.Sprintf("%s|%s|%s|%s",
		ts.Truncate(time.Minute).Format("2006-01-02T15:04"),
		dir,
		signed.StringFixed(2),
		paymentMethod,
	))
}

// ParseDirection maps a canonical direction string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Income, Expense, Neutral:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}
