package billreader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/provider"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// decode converts bill bytes to UTF-8 text using the provider's encoding.
func decode(data []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case provider.EncodingGBK:
		out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), simplifiedchinese.GBK.NewDecoder()))
		if err != nil {
			return "", fmt.Errorf("decode: gbk: %v: %w", err, domain.ErrUnreadableFile)
		}
		// The decoder substitutes U+FFFD for byte sequences that are not
		// GBK, and GBK itself cannot encode U+FFFD.
		if i := bytes.IndexRune(out, utf8.RuneError); i >= 0 {
			return "", fmt.Errorf("decode: invalid gbk near byte %d: %w", i, domain.ErrUnreadableFile)
		}
		return string(out), nil
	default:
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("decode: invalid utf-8: %w", domain.ErrUnreadableFile)
		}
		return string(data), nil
	}
}

// readText splits delimited text into a grid. Lines above the header are kept
// whole so the summary patterns see them as printed; the table from the
// header row down is parsed as CSV.
func readText(data []byte, encoding string, headerRow, tailRows int) ([]gridRow, []string, error) {
	text, err := decode(data, encoding)
	if err != nil {
		return nil, nil, err
	}
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var grid []gridRow
	for i := 0; i < headerRow && i < len(lines); i++ {
		grid = append(grid, gridRow{line: i + 1, cells: []string{lines[i]}})
	}
	if headerRow >= len(lines) {
		return grid, lastLines(lines, tailRows), nil
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines[headerRow:], "\n")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("readText: %v: %w", err, domain.ErrUnreadableFile)
		}
		line, _ := r.FieldPos(0)
		grid = append(grid, gridRow{line: headerRow + line, cells: rec})
	}
	return grid, lastLines(lines, tailRows), nil
}

func lastLines(lines []string, n int) []string {
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			out = append(out, l)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
