package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/termsheet-cli/internal/model"
)

func TestExtraction(t *testing.T) {
	t.Parallel()

	schema := model.FieldSchema{"Issuer", "Settlement Currency", "Issue Price"}
	p := Extraction("(b) Settlement Currency: EUR", schema)

	assert.Contains(t, p, "Issuer, Settlement Currency, Issue Price")
	assert.Contains(t, p, "(b) Settlement Currency: EUR")
	assert.Contains(t, p, "json:{")
	assert.Contains(t, p, "Do not put quotes around numerical values")
	assert.Less(t, strings.Index(p, "-START OF FEATURES LIST-"), strings.Index(p, "-START OF TERMSHEET-"))
}

func TestExtraction_Pure(t *testing.T) {
	t.Parallel()

	schema := model.FieldSchema{"ISIN"}
	assert.Equal(t, Extraction("x", schema), Extraction("x", schema))
}

func TestComparison(t *testing.T) {
	t.Parallel()

	a := model.Table{Header: []string{"Issuer", "Coupon"}, Rows: [][]string{{"ACME, Inc.", "5.5"}}}
	b := model.Table{Header: []string{"Issuer", "Coupon"}, Rows: [][]string{{"ACME Inc", "5.25"}}}
	p := Comparison(a, b)

	assert.Contains(t, p, "=== FILE 1 ===\nIssuer,Coupon\n\"ACME, Inc.\",5.5\n")
	assert.Contains(t, p, "=== FILE 2 ===\nIssuer,Coupon\nACME Inc,5.25\n")
	for _, c := range model.ComparisonColumns {
		assert.Contains(t, p, "'"+c+"'")
	}
	assert.Contains(t, p, "Not-Valid")
	assert.Contains(t, p, "ONLY GIVE RAW CSV TEXT")
}

func TestDiscrepancy(t *testing.T) {
	t.Parallel()

	p := Discrepancy("Issue Date: 14 March 2025", map[string]any{
		"Issue Date": "15 March 2025",
		"Coupon":     5.5,
		"ISIN":       nil,
	})

	assert.Contains(t, p, "Issue Date: 14 March 2025")
	assert.Contains(t, p, `"Coupon": 5.5`)
	assert.Contains(t, p, `"ISIN": null`)
	assert.Contains(t, p, "text_to_highlight")
	assert.Less(t, strings.Index(p, `"Coupon"`), strings.Index(p, `"ISIN"`))
}
