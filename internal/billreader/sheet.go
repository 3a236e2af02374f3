package billreader

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first sheet as the table and collects the tail of every
// sheet for the summary fallback.
func readXLSX(data []byte, tailRows int) ([]gridRow, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("readXLSX: %v: %w", err, domain.ErrUnreadableFile)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("readXLSX: no sheets: %w", domain.ErrUnreadableFile)
	}

	dates := newDateCells(f)

	var (
		grid []gridRow
		tail []string
	)
	for i, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, nil, fmt.Errorf("readXLSX: sheet %q: %v: %w", name, err, domain.ErrUnreadableFile)
		}
		if i == 0 {
			raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
			if err != nil {
				return nil, nil, fmt.Errorf("readXLSX: sheet %q: %v: %w", name, err, domain.ErrUnreadableFile)
			}
			for j, cells := range rows {
				if j < len(raw) {
					dates.restore(name, j, cells, raw[j])
				}
				grid = append(grid, gridRow{line: j + 1, cells: cells})
			}
		}
		tail = append(tail, sheetTail(rows, tailRows)...)
	}
	return grid, tail, nil
}

// DateLayout is how datetime cells of a workbook are rendered. It is the
// layout providers use in their text exports.
const DateLayout = "2006-01-02 15:04:05"

// dateCells recognizes cells holding native Excel datetimes. Such cells store
// a serial number whose display text depends on the cell's number format, so
// they are rendered in DateLayout instead.
type dateCells struct {
	f        *excelize.File
	date1904 bool
	styles   map[int]bool
}

func newDateCells(f *excelize.File) *dateCells {
	d := &dateCells{f: f, styles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

// restore rewrites the date-styled cells of one 0-based sheet row in place.
func (d *dateCells) restore(sheet string, row int, cells, raw []string) {
	for c := range cells {
		if c >= len(raw) || raw[c] == cells[c] {
			continue
		}
		serial, err := strconv.ParseFloat(raw[c], 64)
		if err != nil {
			continue
		}
		ref, err := excelize.CoordinatesToCellName(c+1, row+1)
		if err != nil || !d.isDate(sheet, ref) {
			continue
		}
		t, err := excelize.ExcelDateToTime(serial, d.date1904)
		if err != nil {
			continue
		}
		cells[c] = t.Round(time.Second).Format(DateLayout)
	}
}

func (d *dateCells) isDate(sheet, ref string) bool {
	idx, err := d.f.GetCellStyle(sheet, ref)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := d.styles[idx]; ok {
		return v
	}
	style, err := d.f.GetStyle(idx)
	v := err == nil && isDateFormat(style)
	d.styles[idx] = v
	return v
}

func isDateFormat(s *excelize.Style) bool {
	switch {
	case s.NumFmt >= 14 && s.NumFmt <= 22, s.NumFmt >= 45 && s.NumFmt <= 47:
		return true
	case s.CustomNumFmt != nil:
		return isDateCode(*s.CustomNumFmt)
	}
	return false
}

// isDateCode reports whether a custom number format prints date or time
// parts. Quoted literals, escapes and bracketed sections are ignored.
func isDateCode(code string) bool {
	var sb strings.Builder
	quoted, bracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '\\':
			i++
		case ch == '[':
			bracket = true
		case ch == ']':
			bracket = false
		case bracket:
		default:
			sb.WriteByte(ch)
		}
	}
	return strings.ContainsAny(strings.ToLower(sb.String()), "ydhs")
}

// readXLS is readXLSX for legacy BIFF workbooks.
func readXLS(data []byte, tailRows int) ([]gridRow, []string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, nil, fmt.Errorf("readXLS: %v: %w", err, domain.ErrUnreadableFile)
	}
	if wb.NumSheets() == 0 {
		return nil, nil, fmt.Errorf("readXLS: no sheets: %w", domain.ErrUnreadableFile)
	}

	var (
		grid []gridRow
		tail []string
	)
	for s := 0; s < wb.NumSheets(); s++ {
		sheet := wb.GetSheet(s)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for i := 0; i <= int(sheet.MaxRow); i++ {
			row := sheet.Row(i)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			rows = append(rows, cells)
		}
		if s == 0 {
			for j, cells := range rows {
				grid = append(grid, gridRow{line: j + 1, cells: cells})
			}
		}
		tail = append(tail, sheetTail(rows, tailRows)...)
	}
	return grid, tail, nil
}

func sheetTail(rows [][]string, n int) []string {
	start := len(rows) - n
	if start < 0 {
		start = 0
	}
	var out []string
	for _, cells := range rows[start:] {
		if line := joinCells(cells); line != "" {
			out = append(out, line)
		}
	}
	return out
}
