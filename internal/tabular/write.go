package tabular

import (
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// Sheet names used for generated workbooks.
const (
	SheetComparison = "Comparison"
	SheetStructured = "Structured Data"
)

// WriteCSV writes the header and rows of t as UTF-8 CSV.
func WriteCSV(w io.Writer, t model.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "tabular: write csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "tabular: write csv rows")
	}
	return nil
}

// WriteXLSX writes t to a single-sheet workbook with columns sized to fit.
func WriteXLSX(w io.Writer, sheetName string, t model.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "tabular: add sheet %q", sheetName)
	}

	addRow(sheet, t.Header)
	for _, r := range t.Rows {
		addRow(sheet, r)
	}

	for col, width := range columnWidths(t) {
		sheet.SetColWidth(col, col, width)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "tabular: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

// columnWidths returns the longest cell per column plus padding.
func columnWidths(t model.Table) []float64 {
	n := len(t.Header)
	for _, r := range t.Rows {
		n = max(n, len(r))
	}
	widths := make([]float64, n)
	measure := func(r []string) {
		for i, c := range r {
			widths[i] = max(widths[i], float64(utf8.RuneCountInString(c)+2))
		}
	}
	measure(t.Header)
	for _, r := range t.Rows {
		measure(r)
	}
	return widths
}
