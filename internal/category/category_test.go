package category

import (
	"testing"

	"github.com/dvloznov/billrecon/internal/domain"
)

func TestClassifier_Category(t *testing.T) {
	c := Default()

	tests := []struct {
		name         string
		counterparty string
		description  string
		want         string
	}{
		{"platform merchant", "淘宝平台商户", "日用品", Shopping},
		{"courier", "顺丰", "快递费", Shopping},
		{"railway", "中国铁路12306", "车票", Transport},
		{"fuel", "中石化", "加油", Transport},
		{"telecom", "中国联通", "话费充值", Telecom},
		{"salary", "某公司", "工资", Salary},
		{"shopping wins over salary", "平台商户", "工资", Shopping},
		{"transport wins over telecom", "联通停车场", "", Transport},
		{"fallback", "小吃店", "午饭", Dining},
		{"empty", "", "", Dining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Category(domain.Transaction{Counterparty: tt.counterparty, Description: tt.description})
			if got != tt.want {
				t.Errorf("Category() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify_CopiesInput(t *testing.T) {
	in := []domain.Transaction{{Counterparty: "中国联通"}}
	out := Default().Classify(in)

	if out[0].Category != Telecom {
		t.Errorf("Classify() category = %q, want %q", out[0].Category, Telecom)
	}
	if in[0].Category != "" {
		t.Errorf("input mutated: category = %q", in[0].Category)
	}
}

func TestLoad(t *testing.T) {
	c, err := Load([]byte(`
fallback: Other
rules:
  - category: Groceries
    pattern: "超市|菜场"
  - category: Shopping
    pattern: "快递"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := c.Category(domain.Transaction{Description: "超市快递"}); got != "Groceries" {
		t.Errorf("Category() = %q, want Groceries", got)
	}
	if got := c.Category(domain.Transaction{Description: "咖啡"}); got != "Other" {
		t.Errorf("Category() = %q, want fallback Other", got)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New([]Rule{{Category: "", Pattern: "x"}}, ""); err == nil {
		t.Error("New() expected error for missing category")
	}
	if _, err := New([]Rule{{Category: "X", Pattern: "("}}, ""); err == nil {
		t.Error("New() expected error for invalid pattern")
	}
}
