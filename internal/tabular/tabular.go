// Package tabular reads and writes the CSV and XLSX tables exchanged with
// reviewers: mapsheets, structured sheets and comparison sheets.
package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// Read loads the first sheet of an XLSX file, or a CSV file, as a table whose
// first row is the header.
func Read(path string) (model.Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path, 0)
	case ".csv", ".txt":
		rows, err = readCSVFile(path)
	default:
		return model.Table{}, eris.Errorf("tabular: unsupported table format %q", filepath.Ext(path))
	}
	if err != nil {
		return model.Table{}, err
	}
	return toTable(rows), nil
}

// ReadHeader returns a table's column names as a field schema. Blank and
// duplicate names are dropped.
func ReadHeader(path string) (model.FieldSchema, error) {
	t, err := Read(path)
	if err != nil {
		return nil, err
	}
	var schema model.FieldSchema
	for _, h := range t.Header {
		h = strings.TrimSpace(h)
		if h == "" || schema.Contains(h) {
			continue
		}
		schema = append(schema, h)
	}
	if len(schema) == 0 {
		return nil, eris.Errorf("tabular: %s has no header columns", filepath.Base(path))
	}
	return schema, nil
}

// ReadCSV parses CSV from r as a table.
func ReadCSV(r io.Reader) (model.Table, error) {
	rows, err := readCSV(r)
	if err != nil {
		return model.Table{}, err
	}
	return toTable(rows), nil
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return readCSV(f)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "tabular: read csv row")
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}
}

func readXLSX(path string, sheetIndex int) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open xlsx")
	}
	if sheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("tabular: sheet index %d out of range (file has %d sheets)", sheetIndex, len(f.Sheets))
	}

	var rows [][]string
	for _, row := range f.Sheets[sheetIndex].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// toTable splits off the header and drops fully blank rows.
func toTable(rows [][]string) model.Table {
	var t model.Table
	for i, r := range rows {
		if i == 0 {
			t.Header = r
			continue
		}
		if blank(r) {
			continue
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

func blank(r []string) bool {
	for _, c := range r {
		if c != "" {
			return false
		}
	}
	return true
}

// RecordTable renders a structured record as a one-row table, with missing
// fields written as na.
func RecordTable(rec *model.StructuredRecord, na string) model.Table {
	return model.Table{
		Header: append([]string(nil), rec.Schema...),
		Rows:   [][]string{rec.Row(na)},
	}
}
