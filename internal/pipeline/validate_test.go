package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/termsheet-cli/internal/compare"
	"github.com/sells-group/termsheet-cli/internal/model"
)

const fencedComparisonCSV = "```csv\n" +
	`"Feature","File 1 Value","File 2 Value","Match/Discrepancy","Authority","Suggestion","Severity Score"` + "\n" +
	`"ISIN","XS0001","XS0001","Match","Lawyer","None","1"` + "\n" +
	`"Coupon","5%","4.5%","Discrepancy","Accountant","Use 5%","8"` + "\n" +
	`"Currency","EUR","EUR","Match","Not-Valid","None","1"` + "\n" +
	"```"

func writeTables(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	a := filepath.Join(dir, "structured.csv")
	b := filepath.Join(dir, "mapsheet.csv")
	require.NoError(t, os.WriteFile(a, []byte("Feature,Value\nISIN,XS0001\nCoupon,5%\nCurrency,EUR\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("Feature,Value\nISIN,XS0001\nCoupon,4.5%\nCurrency,EUR\n"), 0o644))
	return a, b
}

func TestCompareFiles_OneDiscrepancyTwoMatches(t *testing.T) {
	t.Parallel()
	a, b := writeTables(t)

	var prompts []string
	client := llmFunc(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return fencedComparisonCSV, nil
	})
	p := New(testConfig(t), nil, nil, client, nil, nil, nil, nil)
	tr := NewTracker("ts-1/validate")

	rows, err := p.CompareFiles(context.Background(), tr, a, b)
	require.NoError(t, err)
	assert.Equal(t, model.StageMerged, tr.Stage())
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "4.5%")

	rep := compare.Split(rows)
	require.Len(t, rep.Discrepancies, 1)
	assert.Len(t, rep.Matches, 2)
	assert.Equal(t, "Coupon", rep.Discrepancies[0].Feature)
	assert.Equal(t, model.AuthorityAccountant, rep.Discrepancies[0].Authority)
	assert.Equal(t, 8, rep.Discrepancies[0].Severity)
	for _, m := range rep.Matches {
		assert.Equal(t, model.AuthorityNotValid, m.Authority)
	}
}

func TestCompareFiles_CallFailure(t *testing.T) {
	t.Parallel()
	a, b := writeTables(t)

	down := errors.New("connection refused")
	client := llmFunc(func(context.Context, string) (string, error) { return "", down })
	p := New(testConfig(t), nil, nil, client, nil, nil, nil, nil)
	tr := NewTracker("ts-1/validate")

	_, err := p.CompareFiles(context.Background(), tr, a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comparison call")
	assert.Equal(t, model.StageFailed, tr.Stage())
}

func TestCompareFiles_NoRows(t *testing.T) {
	t.Parallel()
	a, b := writeTables(t)

	client := llmFunc(func(context.Context, string) (string, error) { return "I could not compare these.", nil })
	p := New(testConfig(t), nil, nil, client, nil, nil, nil, nil)
	tr := NewTracker("ts-1/validate")

	_, err := p.CompareFiles(context.Background(), tr, a, b)
	assert.True(t, errors.Is(err, compare.ErrNoRows))
	assert.Equal(t, model.StageFailed, tr.Stage())
}

func TestWriteValidation(t *testing.T) {
	t.Parallel()

	rows, err := compare.ParseCSV(fencedComparisonCSV)
	require.NoError(t, err)

	dir := t.TempDir()
	rep, xlsxPath, err := WriteValidation(dir, rows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ValidationSheetName), xlsxPath)
	assert.Len(t, rep.Matches, 2)
	assert.FileExists(t, xlsxPath)
	assert.FileExists(t, filepath.Join(dir, "matches.json"))
	assert.FileExists(t, filepath.Join(dir, "discrepancies.json"))
}
