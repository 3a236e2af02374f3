package provider

import "github.com/dvloznov/billrecon/internal/domain"

const (
	incomeSummaryPattern  = `收入：(\d+)笔\s*([\d,]+\.\d+)元`
	expenseSummaryPattern = `支出：(\d+)笔\s*([\d,]+\.\d+)元`

	// DefaultScanRows is how many rows are searched for the summary at the
	// top and bottom of a spreadsheet.
	DefaultScanRows = 30
)

var commonTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-01-02T15:04:05",
}

// Alipay returns the Provider A configuration.
func Alipay() Provider {
	return Provider{
		Source:      domain.ProviderA,
		DisplayName: "支付宝",
		HeaderRow:   22,
		Encoding:    EncodingGBK,
		Columns: []Column{
			{Label: "交易时间", Field: FieldTimestamp},
			{Label: "交易对方", Field: FieldCounterparty},
			{Label: "商品说明", Field: FieldDescription},
			{Label: "收/支", Field: FieldDirection},
			{Label: "金额", Field: FieldAmount},
			{Label: "收/付款方式", Field: FieldPaymentMethod},
			{Label: "交易状态", Field: FieldStatus},
			{Label: "交易分类", Field: FieldKind, Optional: true},
		},
		TimeLayouts:    commonTimeLayouts,
		UTCOffsetHours: 8,
		IncomeLabels:   []string{"收入"},
		ExpenseLabels:  []string{"支出"},
		DropStatuses:   []string{"交易关闭"},
		DropDirections: []string{"不计收支", ""},
		Payment: PaymentRules{
			DefaultIncomeAccount:  "余额宝",
			MultiAccountSeparator: "&",
		},
		Sign: SignRules{
			PartialRefundPattern: `已退款[(（]?[¥￥](\d+(?:\.\d+)?)[)）]?`,
			FullRefundStatuses:   []string{"已全额退款", "对方已退还"},
		},
		Summary: SummaryPatterns{
			Income:   incomeSummaryPattern,
			Expense:  expenseSummaryPattern,
			ScanRows: DefaultScanRows,
		},
		FilenamePatterns: []string{"alipay", "支付宝"},
	}
}

// WeChat returns the Provider B configuration.
func WeChat() Provider {
	return Provider{
		Source:      domain.ProviderB,
		DisplayName: "微信",
		HeaderRow:   16,
		Encoding:    EncodingUTF8,
		Columns: []Column{
			{Label: "交易时间", Field: FieldTimestamp},
			{Label: "交易类型", Field: FieldKind, Optional: true},
			{Label: "交易对方", Field: FieldCounterparty},
			{Label: "商品", Field: FieldDescription},
			{Label: "收/支", Field: FieldDirection},
			{Label: "金额(元)", Field: FieldAmount},
			{Label: "支付方式", Field: FieldPaymentMethod},
			{Label: "当前状态", Field: FieldStatus},
		},
		TimeLayouts:    commonTimeLayouts,
		UTCOffsetHours: 8,
		IncomeLabels:   []string{"收入"},
		ExpenseLabels:  []string{"支出"},
		Payment: PaymentRules{
			Placeholder:   "/",
			WalletStatus:  "已存入零钱",
			WalletAccount: "零钱",
		},
		Sign: SignRules{
			PartialRefundPattern: `已退款[(（]?[¥￥](\d+(?:\.\d+)?)[)）]?`,
			FullRefundStatuses:   []string{"已全额退款", "对方已退还"},
			NeutralStatuses:      []string{"提现已到账", "还款成功"},
		},
		Summary: SummaryPatterns{
			Income:   incomeSummaryPattern,
			Expense:  expenseSummaryPattern,
			ScanRows: DefaultScanRows,
		},
		FilenamePatterns: []string{"微信支付账单", "wechat", "weixin"},
	}
}
