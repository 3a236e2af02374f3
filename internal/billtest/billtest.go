// Package billtest builds synthetic bill exports shaped like the real
// provider downloads, for use in tests.
package billtest

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var (
	// WeChatHeader is the provider B table header.
	WeChatHeader = []string{"交易时间", "交易类型", "交易对方", "商品", "收/支", "金额(元)", "支付方式", "当前状态", "交易单号", "商户单号", "备注"}
	// AlipayHeader is the provider A table header.
	AlipayHeader = []string{"交易时间", "交易分类", "交易对方", "对方账号", "商品说明", "收/支", "金额", "收/付款方式", "交易状态", "交易订单号", "商家订单号", "备注"}
)

// Bill is a synthetic export: declared totals plus table rows.
type Bill struct {
	IncomeCount  int
	Income       string // "" omits the income summary line
	ExpenseCount int
	Expense      string // "" omits the expense summary line
	Rows         [][]string
	// DateCells stores spreadsheet timestamps as native Excel datetimes
	// instead of text.
	DateCells bool
}

// WeChatRow builds a provider B row.
func WeChatRow(ts, kind, counterparty, goods, dir, amount, method, status string) []string {
	return []string{ts, kind, counterparty, goods, dir, amount, method, status, "4200001", "M001", "/"}
}

// AlipayRow builds a provider A row.
func AlipayRow(ts, counterparty, desc, dir, amount, method, status string) []string {
	return []string{ts, "日用百货", counterparty, "", desc, dir, amount, method, status, "2024001", "", ""}
}

func (b Bill) summaryLines() []string {
	var out []string
	if b.Income != "" {
		out = append(out, fmt.Sprintf("收入：%d笔 %s元", b.IncomeCount, b.Income))
	}
	if b.Expense != "" {
		out = append(out, fmt.Sprintf("支出：%d笔 %s元", b.ExpenseCount, b.Expense))
	}
	return out
}

// preamble pads the summary lines out to exactly n lines.
func (b Bill) preamble(title string, n int) []string {
	lines := []string{title, "起始时间：[2024-01-01 00:00:00] 终止时间：[2024-01-31 23:59:59]", "导出时间：[2024-02-01 09:00:00]", ""}
	lines = append(lines, fmt.Sprintf("共%d笔记录", len(b.Rows)))
	lines = append(lines, b.summaryLines()...)
	for len(lines) < n-1 {
		lines = append(lines, "")
	}
	return append(lines, "----------------------"+title+"列表--------------------")
}

// WeChatCSV renders the bill as a UTF-8 provider B CSV with the header on
// line index 16.
func (b Bill) WeChatCSV() []byte {
	return []byte(renderCSV(b.preamble("微信支付账单明细", 16), WeChatHeader, b.Rows))
}

// AlipayCSV renders the bill as a GBK provider A CSV with the header on line
// index 22.
func (b Bill) AlipayCSV() []byte {
	text := renderCSV(b.preamble("支付宝交易明细", 22), AlipayHeader, b.Rows)
	out, err := simplifiedchinese.GBK.NewEncoder().String(text)
	if err != nil {
		panic(fmt.Sprintf("billtest: gbk encode: %v", err))
	}
	return []byte(out)
}

// WeChatXLSX renders the bill as a provider B workbook. When footer is true
// the summary lines are moved below the table.
func (b Bill) WeChatXLSX(footer bool) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	pre := b.preamble("微信支付账单明细", 16)
	if footer {
		bare := b
		bare.Income, bare.Expense = "", ""
		pre = bare.preamble("微信支付账单明细", 16)

		row := 18 + len(b.Rows) + 1
		for _, s := range b.summaryLines() {
			if err := f.SetSheetRow(sheet, cell(row), &[]string{s}); err != nil {
				return nil, err
			}
			row++
		}
	}

	for i, line := range pre {
		if err := f.SetSheetRow(sheet, cell(i+1), &[]string{line}); err != nil {
			return nil, err
		}
	}
	header := WeChatHeader
	if err := f.SetSheetRow(sheet, cell(17), &header); err != nil {
		return nil, err
	}
	for i, r := range b.Rows {
		r := r
		if err := f.SetSheetRow(sheet, cell(18+i), &r); err != nil {
			return nil, err
		}
		if b.DateCells {
			ts, err := time.Parse("2006-01-02 15:04:05", r[0])
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell(18+i), ts); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cell(row int) string {
	return fmt.Sprintf("A%d", row)
}

func renderCSV(preamble, header []string, rows [][]string) string {
	var sb strings.Builder
	for _, l := range preamble {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(header, ","))
	sb.WriteString(",\n")
	for _, r := range rows {
		sb.WriteString(strings.Join(r, ",\t"))
		sb.WriteString(",\n")
	}
	return sb.String()
}
