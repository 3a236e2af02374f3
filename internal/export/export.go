// Package export writes normalized transactions as CSV or XLSX tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Columns is the header row of every export.
var Columns = []string{
	"id", "timestamp", "source", "direction", "counterparty", "description", "kind",
	"raw_amount", "signed_amount", "payment_method", "status", "category", "write_off",
}

const sheetName = "transactions"

func record(t domain.Transaction) []string {
	return []string{
		t.ID,
		t.Timestamp.Format("2006-01-02 15:04:05"),
		string(t.Source),
		string(t.Direction),
		t.Counterparty,
		t.Description,
		t.Kind,
		t.RawAmount.StringFixed(2),
		t.SignedAmount.StringFixed(2),
		t.PaymentMethod,
		t.Status,
		t.Category,
		strconv.FormatBool(t.WriteOff),
	}
}

// WriteCSV writes txs as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	for _, t := range txs {
		if err := cw.Write(record(t)); err != nil {
			return fmt.Errorf("WriteCSV: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

// WriteXLSX writes txs as a single-sheet workbook. Amounts are stored as
// text so that no float rounding is introduced.
func WriteXLSX(w io.Writer, txs []domain.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}

	header := Columns
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("WriteXLSX: header: %w", err)
	}
	for i, t := range txs {
		row := record(t)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("WriteXLSX: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("WriteXLSX: row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	return nil
}

// WriteFile writes txs to path, choosing the format from the extension
// (.xlsx, otherwise CSV).
func WriteFile(path string, txs []domain.Transaction) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("WriteFile: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = WriteXLSX(out, txs)
	} else {
		err = WriteCSV(out, txs)
	}
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("WriteFile: %w", cerr)
	}
	return err
}
