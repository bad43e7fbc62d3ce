package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dispatchlab/rtdcheck/internal/faults"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rtd.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), "rtd.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestVerifyCSV(t *testing.T) {
	path := writeCSV(t, "\ufeffOrder ID,Customer,Amount,Date\nA1,Asha,\"1,250\",01-04-2025\nA2,Ravi,99.5,02-04-2025\n")
	n, err := NewVerifier().VerifyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestVerifyCSVFailures(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		path := writeCSV(t, "Order,Customer,Amount\nA1,Asha,10\n")
		_, err := NewVerifier().VerifyFile(path)
		var he *HeaderError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, []string{"Order", "Customer", "Amount"}, he.Got)
	})

	t.Run("header case is ignored", func(t *testing.T) {
		path := writeCSV(t, "order id,CUSTOMER,Amount,date\nA1,Asha,10,01-04-2025\n")
		_, err := NewVerifier().VerifyFile(path)
		assert.NoError(t, err)
	})

	t.Run("zero amount", func(t *testing.T) {
		path := writeCSV(t, "Order ID,Customer,Amount,Date\nA1,Asha,10,x\nA2,Ravi,0,x\n")
		n, err := NewVerifier().VerifyFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 3")
		assert.Equal(t, 1, n)
	})

	t.Run("malformed amount", func(t *testing.T) {
		path := writeCSV(t, "Order ID,Customer,Amount,Date\nA1,Asha,pending,x\n")
		_, err := NewVerifier().VerifyFile(path)
		assert.True(t, faults.IsParse(err))
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := NewVerifier().VerifyFile(writeCSV(t, ""))
		assert.Error(t, err)
	})
}

func TestVerifyXLSX(t *testing.T) {
	path := writeXLSX(t, [][]any{
		{"Order ID", "Customer", "Amount", "Date"},
		{"A1", "Asha", 1250, "01-04-2025"},
		{"A2", "Ravi", "₹99.50", "02-04-2025"},
	})
	table, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultHeader, table.Header)

	n, err := NewVerifier().Verify(table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("/tmp/Report.XLSX")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)
	_, err = FormatOf("report.pdf")
	assert.Error(t, err)
}
