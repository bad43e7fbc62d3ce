// Package export reads the RTD table export and checks its header and amounts
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"

	"github.com/dispatchlab/rtdcheck/internal/decode"
	"github.com/dispatchlab/rtdcheck/internal/faults"
)

// DefaultHeader is the column layout of an RTD export
var DefaultHeader = []string{"Order ID", "Customer", "Amount", "Date"}

// Format of an exported file
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// FormatOf picks the format from the file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".xlsx":
		return XLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", filepath.Ext(path))
}

// Table is an export with its header split off
type Table struct {
	Header []string
	Rows   [][]string
}

// Read loads a CSV or XLSX export. XLSX files are read from their first sheet.
func Read(path string) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var records [][]string
	switch format {
	case CSV:
		records, err = readCSV(path)
	case XLSX:
		records, err = readXLSX(path)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("export %s is empty", filepath.Base(path))
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return &Table{Header: header, Rows: records[1:]}, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv export: %w", err)
		}
		records = append(records, rec)
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx export: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx export %s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// HeaderError reports an export whose header differs from the expected one
type HeaderError struct {
	Want []string
	Got  []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("export header mismatch: want %q, got %q", e.Want, e.Got)
}

// Verifier checks an export's header, case-insensitively, and that every row's
// amount is positive
type Verifier struct {
	Header       []string
	AmountColumn string
}

// NewVerifier returns the verifier for RTD exports
func NewVerifier() Verifier {
	return Verifier{Header: DefaultHeader, AmountColumn: "Amount"}
}

// Verify returns the number of rows checked
func (v Verifier) Verify(t *Table) (int, error) {
	if !sameHeader(v.Header, t.Header) {
		return 0, &HeaderError{Want: v.Header, Got: t.Header}
	}
	col := -1
	for i, h := range t.Header {
		if cases.Fold().String(h) == cases.Fold().String(v.AmountColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, fmt.Errorf("export has no %q column", v.AmountColumn)
	}

	for i, row := range t.Rows {
		if col >= len(row) {
			return i, fmt.Errorf("export row %d: missing %s column", i+2, v.AmountColumn)
		}
		amount, ok := decode.ParseAmount(row[col], v.AmountColumn, "₹", ",")
		if !ok {
			return i, fmt.Errorf("export row %d: %w", i+2, &faults.ParseError{Input: row[col], Want: "amount"})
		}
		if amount <= 0 {
			return i, fmt.Errorf("export row %d: amount %v is not greater than 0", i+2, amount)
		}
	}
	return len(t.Rows), nil
}

// VerifyFile reads path and verifies it
func (v Verifier) VerifyFile(path string) (int, error) {
	t, err := Read(path)
	if err != nil {
		return 0, err
	}
	return v.Verify(t)
}

func sameHeader(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if cases.Fold().String(want[i]) != cases.Fold().String(got[i]) {
			return false
		}
	}
	return true
}
