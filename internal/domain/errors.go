package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnreadableFile is returned when a bill file cannot be opened or decoded.
	ErrUnreadableFile = errors.New("unreadable bill file")

	// ErrMissingColumns is returned when the header row lacks required columns.
	// Use errors.As with *MissingColumnsError to get the column names.
	ErrMissingColumns = errors.New("missing required columns")

	// ErrSummaryNotFound is returned when neither the income nor the expense
	// summary line can be found in the bill.
	ErrSummaryNotFound = errors.New("bill summary not found")

	// ErrNoFlaggedRecords is returned by the write-off settler when the mask
	// selects no records but a non-zero residual must be absorbed.
	ErrNoFlaggedRecords = errors.New("no records flagged for write-off")

	// ErrDiscrepancy is returned by ImportResult.Err for unreconciled batches.
	ErrDiscrepancy = errors.New("reconciliation discrepancy")
)

// MissingColumnsError names the required columns absent from a header row.
type MissingColumnsError struct {
	Source  Source
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %v: %s", ErrMissingColumns, e.Source, strings.Join(e.Missing, ", "))
}

// Unwrap lets errors.Is match ErrMissingColumns.
func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// WarningKind classifies a non-fatal, row-level problem.
type WarningKind string

const (
	// MalformedRow marks a row skipped because a required value did not parse.
	MalformedRow WarningKind = "malformed_row"
)

// Warning is a non-fatal diagnostic attached to an import result.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	RowIndex int         `json:"row_index"` // 0-based data row index
	Line     int         `json:"line"`      // 1-based line in the source file
	Reason   string      `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at row %d (line %d): %s", w.Kind, w.RowIndex, w.Line, w.Reason)
}
