package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/compare"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/prompt"
	"github.com/sells-group/termsheet-cli/internal/tabular"
)

// ValidationSheetName is the file name of the comparison spreadsheet.
const ValidationSheetName = "validation_sheet.xlsx"

// Validate compares the structured sheet against the mapsheet, writes the
// comparison spreadsheet and the matches/discrepancies reports into dir, and
// attaches the spreadsheet as the validated sheet. The table pair moves
// through the same stages as a structured document, as a single chunk.
func (p *Pipeline) Validate(ctx context.Context, id, dir string) (compare.Report, error) {
	tr := NewTracker(id + "/validate")

	structuredPath, _, err := p.fetch(ctx, id, model.RoleStructured, dir)
	if err != nil {
		return compare.Report{}, tr.Fail(err)
	}
	mapPath, _, err := p.fetch(ctx, id, model.RoleMapsheet, dir)
	if err != nil {
		return compare.Report{}, tr.Fail(err)
	}

	rows, err := p.CompareFiles(ctx, tr, structuredPath, mapPath)
	if err != nil {
		return compare.Report{}, err
	}

	report, xlsxPath, err := WriteValidation(dir, rows)
	if err != nil {
		return report, tr.Fail(err)
	}
	if _, err := p.publish(ctx, id, model.RoleValidated, xlsxPath, model.FileTypeExcel); err != nil {
		return report, tr.Fail(err)
	}
	return report, tr.Advance(model.StagePersisted)
}

// CompareFiles reads two tables and runs the comparison prompt over them,
// recording progress on tr. It stops at StageMerged.
func (p *Pipeline) CompareFiles(ctx context.Context, tr *Tracker, pathA, pathB string) ([]model.ComparisonRow, error) {
	a, err := tabular.Read(pathA)
	if err != nil {
		return nil, tr.Fail(err)
	}
	b, err := tabular.Read(pathB)
	if err != nil {
		return nil, tr.Fail(err)
	}
	if err := tr.Advance(model.StageChunked); err != nil {
		return nil, err
	}

	text := prompt.Comparison(a, b)
	if err := tr.Advance(model.StagePrompted); err != nil {
		return nil, err
	}

	raw, err := p.llm.Call(ctx, text)
	if err != nil {
		return nil, tr.Fail(eris.Wrap(err, "pipeline: comparison call"))
	}
	if err := tr.Advance(model.StageLLMCalled); err != nil {
		return nil, err
	}

	rows, err := compare.ParseCSV(raw)
	if advErr := tr.Advance(model.StageParsedOrFailed); advErr != nil {
		return nil, advErr
	}
	if err != nil {
		return nil, tr.Fail(err)
	}
	if err := tr.Advance(model.StageMerged); err != nil {
		return nil, err
	}
	zap.L().Info("comparison parsed",
		zap.String("document", tr.id),
		zap.Int("rows", len(rows)),
		zap.Int("features_a", len(a.Rows)),
		zap.Int("features_b", len(b.Rows)),
	)
	return rows, nil
}

// WriteValidation writes validation_sheet.xlsx, matches.json and
// discrepancies.json into dir.
func WriteValidation(dir string, rows []model.ComparisonRow) (compare.Report, string, error) {
	report := compare.Split(rows)

	xlsxPath := filepath.Join(dir, ValidationSheetName)
	f, err := os.Create(xlsxPath)
	if err != nil {
		return report, "", eris.Wrapf(err, "pipeline: create %s", xlsxPath)
	}
	if err := tabular.WriteXLSX(f, tabular.SheetComparison, compare.Table(rows)); err != nil {
		f.Close() //nolint:errcheck
		return report, "", err
	}
	if err := f.Close(); err != nil {
		return report, "", eris.Wrapf(err, "pipeline: close %s", xlsxPath)
	}

	if _, _, err := report.WriteFiles(dir); err != nil {
		return report, "", err
	}
	zap.L().Info("validation written",
		zap.String("dir", dir),
		zap.Int("matches", len(report.Matches)),
		zap.Int("discrepancies", len(report.Discrepancies)),
	)
	return report, xlsxPath, nil
}
