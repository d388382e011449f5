package tabular

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/termsheet-cli/internal/model"
)

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "mapsheet.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead_XLSX(t *testing.T) {
	t.Parallel()

	path := createTestXLSX(t, [][]string{
		{"ISIN", "Issuer", " Coupon "},
		{"XS0001", "ACME", "5%"},
		{"", "", ""},
		{"XS0002", "Beta", "4%"},
	})

	tbl, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ISIN", "Issuer", "Coupon"}, tbl.Header)
	assert.Equal(t, [][]string{{"XS0001", "ACME", "5%"}, {"XS0002", "Beta", "4%"}}, tbl.Rows)
}

func TestRead_CSV(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "sheet.csv", "ISIN,Issuer\nXS0001, \"ACME, Inc\"\n")
	tbl, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ISIN", "Issuer"}, tbl.Header)
	assert.Equal(t, [][]string{{"XS0001", "ACME, Inc"}}, tbl.Rows)
}

func TestRead_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	_, err := Read(writeFile(t, "sheet.docx", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestReadHeader(t *testing.T) {
	t.Parallel()

	path := createTestXLSX(t, [][]string{{"ISIN", "", "Issuer", "ISIN"}})
	schema, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, model.FieldSchema{"ISIN", "Issuer"}, schema)

	_, err = ReadHeader(writeFile(t, "empty.csv", ",,\n"))
	assert.Error(t, err)
}

func TestWriteCSV_RecordTable(t *testing.T) {
	t.Parallel()

	rec := model.NewStructuredRecord(model.FieldSchema{"ISIN", "Issuer", "Coupon"})
	rec.Set("ISIN", "XS0001")
	rec.Set("Issuer", "ACME | ACME Corp")

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, RecordTable(rec, "null")))
	assert.Equal(t, "ISIN,Issuer,Coupon\nXS0001,ACME | ACME Corp,null\n", buf.String())
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	t.Parallel()

	tbl := model.Table{
		Header: model.ComparisonColumns,
		Rows:   [][]string{{"Coupon", "5%", "4.5%", "Discrepancy", "Accountant", "Use 5%", "8"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, SheetComparison, tbl))

	path := filepath.Join(t.TempDir(), "validation_sheet.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	_, ok := f.Sheet[SheetComparison]
	assert.True(t, ok)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Header, got.Header)
	assert.Equal(t, tbl.Rows, got.Rows)
}

func TestColumnWidths(t *testing.T) {
	t.Parallel()

	w := columnWidths(model.Table{Header: []string{"a", "bb"}, Rows: [][]string{{"cccc"}, {"", "d", "extra"}}})
	assert.Equal(t, []float64{6, 4, 7}, w)
}

func TestLoadSchema(t *testing.T) {
	t.Parallel()

	def, err := LoadSchema("")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultFieldSchema(), def)

	path := writeFile(t, "schema.yaml", strings.Join([]string{
		"schema:",
		"  fields:",
		"    - ISIN",
		"    - Issuer",
		"    - ISIN",
	}, "\n"))
	schema, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, model.FieldSchema{"ISIN", "Issuer"}, schema)

	_, err = LoadSchema(writeFile(t, "empty.yaml", "schema:\n  fields: []\n"))
	assert.Error(t, err)
}
