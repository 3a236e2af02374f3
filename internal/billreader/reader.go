// Package billreader turns a raw bill export into a header-keyed table.
// It knows nothing about the meaning of columns; it only decodes the file,
// locates the header row at the provider's fixed offset and checks that the
// provider's required labels are present.
package billreader

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/provider"
)

// Format is the container format of a bill export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// cellCutset is stripped from both ends of every cell.
const cellCutset = " \t\r\n 　¥￥"

// Document is a decoded bill: the free-text lines around the table and the
// table itself.
type Document struct {
	Format Format
	// Preamble holds the lines above the header row, cells joined by a space
	// for spreadsheets.
	Preamble []string
	// Tail holds the last lines of the file, or of every sheet for
	// spreadsheets.
	Tail   []string
	Header []string
	Rows   []domain.RawRow
}

// gridRow is one physical row before header mapping.
type gridRow struct {
	line  int // 1-based
	cells []string
}

// Read decodes a bill export using the provider's layout.
func Read(data []byte, filename string, p provider.Provider) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("Read: %s: empty file: %w", filename, domain.ErrUnreadableFile)
	}

	format, err := sniff(data, filename)
	if err != nil {
		return nil, fmt.Errorf("Read: %s: %w", filename, err)
	}

	tailRows := p.Summary.ScanRows
	if tailRows <= 0 {
		tailRows = provider.DefaultScanRows
	}

	var (
		grid []gridRow
		tail []string
	)
	switch format {
	case FormatXLSX:
		grid, tail, err = readXLSX(data, tailRows)
	case FormatXLS:
		grid, tail, err = readXLS(data, tailRows)
	default:
		grid, tail, err = readText(data, p.Encoding, p.HeaderRow, tailRows)
	}
	if err != nil {
		return nil, fmt.Errorf("Read: %s: %w", filename, err)
	}

	doc, err := buildDocument(grid, p)
	if err != nil {
		return nil, fmt.Errorf("Read: %s: %w", filename, err)
	}
	doc.Format = format
	doc.Tail = tail
	return doc, nil
}

// sniff picks the container format from magic bytes, using the extension
// only to reject spreadsheets whose signature is missing.
func sniff(data []byte, filename string) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return "", fmt.Errorf("spreadsheet signature missing: %w", domain.ErrUnreadableFile)
	}
	return FormatCSV, nil
}

func buildDocument(grid []gridRow, p provider.Provider) (*Document, error) {
	headerAt := -1
	for i, r := range grid {
		if r.line-1 == p.HeaderRow {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, fmt.Errorf("header row %d beyond end of file: %w", p.HeaderRow, domain.ErrUnreadableFile)
	}

	header := make([]string, len(grid[headerAt].cells))
	present := make(map[string]bool, len(header))
	for i, c := range grid[headerAt].cells {
		header[i] = cleanCell(c)
		present[header[i]] = true
	}
	// Trailing empty header cells come from trailing delimiters.
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}

	var missing []string
	for _, label := range p.RequiredLabels() {
		if !present[label] {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.MissingColumnsError{Source: p.Source, Missing: missing}
	}

	doc := &Document{Header: header}
	for _, r := range grid[:headerAt] {
		doc.Preamble = append(doc.Preamble, joinCells(r.cells))
	}

	for _, r := range grid[headerAt+1:] {
		cells := make(map[string]string, len(header))
		filled := 0
		for i, label := range header {
			if label == "" {
				continue
			}
			v := ""
			if i < len(r.cells) {
				v = cleanCell(r.cells[i])
			}
			if v != "" {
				filled++
			}
			cells[label] = v
		}
		if filled == 0 || isAnnotation(r.cells, filled, len(header), p) {
			continue
		}
		doc.Rows = append(doc.Rows, domain.RawRow{
			Index:  r.line - p.HeaderRow - 2,
			Line:   r.line,
			Cells:  cells,
			Labels: header,
		})
	}
	return doc, nil
}

// isAnnotation reports whether a row is a free-text line (footer summary,
// separator, disclaimer) that only fills the first column of a wide table.
// A lone timestamp is a truncated record, not prose, and is kept so that it
// surfaces as a malformed row.
func isAnnotation(cells []string, filled, width int, p provider.Provider) bool {
	if width <= 2 || filled != 1 || len(cells) == 0 {
		return false
	}
	first := cleanCell(cells[0])
	return first != "" && !isTimestamp(first, p)
}

func isTimestamp(s string, p provider.Provider) bool {
	loc := p.Location()
	for _, layout := range p.TimeLayouts {
		if _, err := time.ParseInLocation(layout, s, loc); err == nil {
			return true
		}
	}
	return false
}

func cleanCell(s string) string {
	return strings.Trim(s, cellCutset)
}

func joinCells(cells []string) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
