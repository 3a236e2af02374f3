package provider

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	for _, p := range []Provider{Alipay(), WeChat()} {
		if err := p.Validate(); err != nil {
			t.Errorf("%s.Validate() error = %v", p.Source, err)
		}
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Provider)
		want   string
	}{
		{
			name:   "missing source",
			mutate: func(p *Provider) { p.Source = "" },
			want:   "source is required",
		},
		{
			name:   "bad encoding",
			mutate: func(p *Provider) { p.Encoding = "latin1" },
			want:   "unsupported encoding",
		},
		{
			name: "unmapped amount",
			mutate: func(p *Provider) {
				var cols []Column
				for _, c := range p.Columns {
					if c.Field != FieldAmount {
						cols = append(cols, c)
					}
				}
				p.Columns = cols
			},
			want: `no column mapped to "amount"`,
		},
		{
			name:   "summary pattern without groups",
			mutate: func(p *Provider) { p.Summary.Income = `收入` },
			want:   "needs count and amount groups",
		},
		{
			name:   "bad exempt amount",
			mutate: func(p *Provider) { p.Sign.RefundExemptAmounts = []string{"eleven"} },
			want:   "refund exempt amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Alipay()
			tt.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestDirectionOf(t *testing.T) {
	p := Alipay()
	tests := []struct {
		label string
		want  domain.Direction
	}{
		{"收入", domain.Income},
		{"支出", domain.Expense},
		{"不计收支", domain.Neutral},
		{"", domain.Neutral},
	}
	for _, tt := range tests {
		if got := p.DirectionOf(tt.label); got != tt.want {
			t.Errorf("DirectionOf(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}

func TestDropped(t *testing.T) {
	a := Alipay()
	if !a.Dropped("交易关闭", "支出") {
		t.Error("Dropped() = false for closed alipay trade, want true")
	}
	if !a.Dropped("交易成功", "不计收支") {
		t.Error("Dropped() = false for 不计收支, want true")
	}
	if a.Dropped("交易成功", "支出") {
		t.Error("Dropped() = true for successful expense, want false")
	}

	w := WeChat()
	if w.Dropped("交易关闭", "支出") {
		t.Error("wechat Dropped() = true, want false")
	}
}

func TestRequiredLabels_SkipsOptional(t *testing.T) {
	p := Alipay()
	for _, l := range p.RequiredLabels() {
		if l == "交易分类" {
			t.Errorf("RequiredLabels() contains optional label %q", l)
		}
	}
}

func TestLocation(t *testing.T) {
	p := WeChat()
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, p.Location()).Zone()
	if offset != 8*3600 {
		t.Errorf("Location() offset = %d, want %d", offset, 8*3600)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     domain.Source
		wantErr  bool
	}{
		{"alipay_record_20240101.csv", domain.ProviderA, false},
		{"支付宝交易明细.xlsx", domain.ProviderA, false},
		{"微信支付账单(20240101-20240131).csv", domain.ProviderB, false},
		{"WeChat_export.xlsx", domain.ProviderB, false},
		{"statement.csv", "", true},
	}
	for _, tt := range tests {
		got, err := Detect(tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("Detect(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestLoad_OverridesAndAdds(t *testing.T) {
	yamlDoc := `
providers:
  - source: alipay
    display_name: Alipay (custom)
    header_row: 4
    encoding: utf-8
    columns:
      - {label: time, field: timestamp}
      - {label: dir, field: direction}
      - {label: amt, field: amount}
      - {label: memo, field: description}
      - {label: via, field: payment_method}
      - {label: state, field: status}
    time_layouts: ["2006-01-02 15:04:05"]
    utc_offset_hours: 8
    income_labels: [in]
    expense_labels: [out]
    sign:
      refund_exempt_amounts: ["11"]
    summary:
      income: 'in:(\d+) items ([\d.]+)'
      expense: 'out:(\d+) items ([\d.]+)'
`
	reg, err := Load([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p, err := reg.Get(domain.ProviderA)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.HeaderRow != 4 {
		t.Errorf("HeaderRow = %d, want 4", p.HeaderRow)
	}
	if p.Summary.ScanRows != DefaultScanRows {
		t.Errorf("ScanRows = %d, want default %d", p.Summary.ScanRows, DefaultScanRows)
	}
	exempt, err := p.ExemptAmounts()
	if err != nil || len(exempt) != 1 || exempt[0].String() != "11" {
		t.Errorf("ExemptAmounts() = %v, %v, want [11]", exempt, err)
	}

	if _, err := reg.Get(domain.ProviderB); err != nil {
		t.Errorf("built-in wechat missing after Load: %v", err)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	_, err := Load([]byte("providers:\n  - source: x\n"))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	if _, err := DefaultRegistry().Get("paypal"); err == nil {
		t.Error("Get(paypal) expected error, got nil")
	}
}
