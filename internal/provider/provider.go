// Package provider describes bill export formats as data. Each payment
// provider is one Provider value: where its table starts, how its columns are
// named, which encoding it uses, and how its statuses and payment methods
// are interpreted. Adding a provider means adding configuration, not code.
package provider

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/shopspring/decimal"
)

// Canonical field names used in column mappings.
const (
	FieldTimestamp     = "timestamp"
	FieldCounterparty  = "counterparty"
	FieldDescription   = "description"
	FieldDirection     = "direction"
	FieldAmount        = "amount"
	FieldPaymentMethod = "payment_method"
	FieldStatus        = "status"
	FieldKind          = "kind"
)

// requiredFields must be mapped by every provider.
var requiredFields = []string{
	FieldTimestamp, FieldDirection, FieldAmount, FieldDescription,
	FieldPaymentMethod, FieldStatus,
}

// Supported text encodings.
const (
	EncodingUTF8 = "utf-8"
	EncodingGBK  = "gbk"
)

// Column maps a provider-native label to a canonical field.
type Column struct {
	Label    string `yaml:"label"`
	Field    string `yaml:"field"`
	Optional bool   `yaml:"optional,omitempty"`
}

// PaymentRules repair provider-specific payment method quirks.
type PaymentRules struct {
	// DefaultIncomeAccount replaces an empty payment method on income rows.
	DefaultIncomeAccount string `yaml:"default_income_account,omitempty"`
	// MultiAccountSeparator splits joined multi-account methods; the first
	// account is kept.
	MultiAccountSeparator string `yaml:"multi_account_separator,omitempty"`
	// Placeholder is the value a provider prints when no method applies.
	Placeholder string `yaml:"placeholder,omitempty"`
	// WalletStatus is the status meaning "settled to wallet".
	WalletStatus string `yaml:"wallet_status,omitempty"`
	// WalletAccount replaces Placeholder when the status is WalletStatus.
	WalletAccount string `yaml:"wallet_account,omitempty"`
}

// SignRules drive refund and neutral-movement handling.
type SignRules struct {
	// PartialRefundPattern must capture the refunded amount in group 1.
	PartialRefundPattern string   `yaml:"partial_refund_pattern,omitempty"`
	FullRefundStatuses   []string `yaml:"full_refund_statuses,omitempty"`
	NeutralStatuses      []string `yaml:"neutral_statuses,omitempty"`
	// RefundExemptAmounts are raw amounts that bypass full-refund
	// neutralization.
	RefundExemptAmounts []string `yaml:"refund_exempt_amounts,omitempty"`
}

// SummaryPatterns locate the declared totals. Each pattern must capture the
// transaction count in group 1 and the amount in group 2.
type SummaryPatterns struct {
	Income  string `yaml:"income"`
	Expense string `yaml:"expense"`
	// ScanRows is how many leading (and, for spreadsheets, trailing) rows are
	// searched.
	ScanRows int `yaml:"scan_rows,omitempty"`
}

// Provider is the configuration of one bill export format.
type Provider struct {
	Source      domain.Source `yaml:"source"`
	DisplayName string        `yaml:"display_name"`
	// HeaderRow is the 0-based line index of the table header.
	HeaderRow int    `yaml:"header_row"`
	Encoding  string `yaml:"encoding"`

	Columns     []Column `yaml:"columns"`
	TimeLayouts []string `yaml:"time_layouts"`
	// UTCOffsetHours is the fixed offset bill timestamps are printed in.
	UTCOffsetHours int `yaml:"utc_offset_hours"`

	IncomeLabels  []string `yaml:"income_labels"`
	ExpenseLabels []string `yaml:"expense_labels"`

	DropStatuses   []string `yaml:"drop_statuses,omitempty"`
	DropDirections []string `yaml:"drop_directions,omitempty"`

	Payment PaymentRules    `yaml:"payment"`
	Sign    SignRules       `yaml:"sign"`
	Summary SummaryPatterns `yaml:"summary"`

	// FilenamePatterns are substrings callers may use to infer the provider.
	FilenamePatterns []string `yaml:"filename_patterns,omitempty"`
}

// Validate checks that the configuration is usable.
func (p *Provider) Validate() error {
	if p.Source == "" {
		return fmt.Errorf("provider: source is required")
	}
	if p.HeaderRow < 0 {
		return fmt.Errorf("provider %s: header_row must be >= 0", p.Source)
	}
	switch strings.ToLower(p.Encoding) {
	case EncodingUTF8, EncodingGBK, "":
	default:
		return fmt.Errorf("provider %s: unsupported encoding %q", p.Source, p.Encoding)
	}
	mapped := make(map[string]bool, len(p.Columns))
	for _, c := range p.Columns {
		mapped[c.Field] = true
	}
	for _, f := range requiredFields {
		if !mapped[f] {
			return fmt.Errorf("provider %s: no column mapped to %q", p.Source, f)
		}
	}
	if len(p.TimeLayouts) == 0 {
		return fmt.Errorf("provider %s: at least one time layout is required", p.Source)
	}
	if p.Sign.PartialRefundPattern != "" {
		re, err := regexp.Compile(p.Sign.PartialRefundPattern)
		if err != nil {
			return fmt.Errorf("provider %s: partial_refund_pattern: %w", p.Source, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("provider %s: partial_refund_pattern needs a capture group", p.Source)
		}
	}
	for _, pat := range []string{p.Summary.Income, p.Summary.Expense} {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("provider %s: summary pattern: %w", p.Source, err)
		}
		if re.NumSubexp() < 2 {
			return fmt.Errorf("provider %s: summary pattern %q needs count and amount groups", p.Source, pat)
		}
	}
	if _, err := p.ExemptAmounts(); err != nil {
		return err
	}
	return nil
}

// Label returns the native label mapped to a canonical field, if any.
func (p *Provider) Label(field string) (string, bool) {
	for _, c := range p.Columns {
		if c.Field == field {
			return c.Label, true
		}
	}
	return "", false
}

// RequiredLabels lists the native labels that must appear in the header row.
func (p *Provider) RequiredLabels() []string {
	labels := make([]string, 0, len(p.Columns))
	for _, c := range p.Columns {
		if !c.Optional {
			labels = append(labels, c.Label)
		}
	}
	return labels
}

// Location is the fixed zone bill timestamps are interpreted in.
func (p *Provider) Location() *time.Location {
	if p.UTCOffsetHours == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", p.UTCOffsetHours), p.UTCOffsetHours*3600)
}

// DirectionOf maps a native direction label.
func (p *Provider) DirectionOf(label string) domain.Direction {
	if contains(p.IncomeLabels, label) {
		return domain.Income
	}
	if contains(p.ExpenseLabels, label) {
		return domain.Expense
	}
	return domain.Neutral
}

// Dropped reports whether a row with this status and direction label is
// filtered out before normalization.
func (p *Provider) Dropped(status, directionLabel string) bool {
	return contains(p.DropStatuses, status) || contains(p.DropDirections, directionLabel)
}

// ExemptAmounts parses Sign.RefundExemptAmounts.
func (p *Provider) ExemptAmounts() ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(p.Sign.RefundExemptAmounts))
	for _, s := range p.Sign.RefundExemptAmounts {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("provider %s: refund exempt amount %q: %w", p.Source, s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Matches reports whether a filename looks like an export of this provider.
func (p *Provider) Matches(filename string) bool {
	lower := strings.ToLower(filename)
	for _, pat := range p.FilenamePatterns {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
