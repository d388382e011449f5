package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]any
		kind Kind
	}{
		{
			name: "plain",
			raw:  `json:{"Issuer": "ACME", "Coupon": 5.5}`,
			want: map[string]any{"Issuer": "ACME", "Coupon": 5.5},
		},
		{
			name: "noise before marker",
			raw:  "Sure! Here is the data you asked for.\njson: {\"ISIN\": \"XS0001\"}\nHope this helps.",
			want: map[string]any{"ISIN": "XS0001"},
		},
		{
			name: "thinking preamble with decoy marker",
			raw:  `<think>maybe json:{"ISIN": "wrong"}</think> json:{"ISIN": "right"}`,
			want: map[string]any{"ISIN": "right"},
		},
		{
			name: "nested object",
			raw:  `json:{"Dates": {"Issue": "2025-03-14", "Maturity": {"Scheduled": "2030-03-14"}}, "Tranche": 1}`,
			want: map[string]any{
				"Dates":   map[string]any{"Issue": "2025-03-14", "Maturity": map[string]any{"Scheduled": "2030-03-14"}},
				"Tranche": float64(1),
			},
		},
		{
			name: "escaped quotes",
			raw:  `json:{\"Issuer\": \"ACME\", \"Tranche\": null}`,
			want: map[string]any{"Issuer": "ACME", "Tranche": nil},
		},
		{
			name: "escaped newlines",
			raw:  `json:{\n\"Issuer\": \"ACME\"\n}`,
			want: map[string]any{"Issuer": "ACME"},
		},
		{
			name: "uppercase marker",
			raw:  `JSON:{"a": 1}`,
			want: map[string]any{"a": float64(1)},
		},
		{name: "marker absent", raw: `{"Issuer": "ACME"}`, kind: NoJsonMarker},
		{name: "empty", raw: "", kind: NoJsonMarker},
		{name: "unbalanced", raw: `json:{"Issuer": {"name": "ACME"}`, kind: UnbalancedBraces},
		{name: "no object after marker", raw: `json: none`, kind: UnbalancedBraces},
		{name: "invalid json", raw: `json:{"Issuer": ACME}`, kind: InvalidJson},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, fail := ExtractJSON(tt.raw)
			if tt.kind != 0 {
				require.NotNil(t, fail)
				assert.Equal(t, tt.kind, fail.Kind)
				assert.Nil(t, got)
				return
			}
			require.Nil(t, fail)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_SnippetTruncated(t *testing.T) {
	t.Parallel()

	raw := `json:{"Issuer": ` + strings.Repeat("x", 500) + `}`
	_, fail := ExtractJSON(raw)
	require.NotNil(t, fail)
	assert.Equal(t, InvalidJson, fail.Kind)
	assert.LessOrEqual(t, len(fail.Snippet), snippetSize+3)
	assert.Contains(t, fail.Error(), "invalid_json")
	assert.Error(t, fail.Unwrap())
}

func TestResultOK(t *testing.T) {
	t.Parallel()

	assert.True(t, Result{Fields: map[string]any{}}.OK())
	assert.False(t, Result{Failure: &Failure{Kind: NoJsonMarker}}.OK())
	assert.False(t, Result{}.OK())
}

func TestExtractDiscrepancies(t *testing.T) {
	t.Parallel()

	raw := `json:{"discrepancies": [
		{"text_to_highlight": "EUR 1,000", "related_termsheet_field": "Specified Denomination",
		 "termsheet_value": "EUR 2,000", "document_value": "EUR 1,000",
		 "explanation": "denomination differs", "severity": 8},
		{"text_to_highlight": "", "related_termsheet_field": "ISIN", "severity": 3}
	]}`

	got, fail := ExtractDiscrepancies(raw)
	require.Nil(t, fail)
	require.Len(t, got, 1)
	assert.Equal(t, "EUR 1,000", got[0].TextToHighlight)
	assert.EqualValues(t, 8, got[0].Severity)
}

func TestExtractDiscrepancies_NoMarkerFallback(t *testing.T) {
	t.Parallel()

	raw := "Here you go:\n```\n{\"discrepancies\": [{\"text_to_highlight\": \"14 March\", \"severity\": \"6\"}]}\n```"
	got, fail := ExtractDiscrepancies(raw)
	require.Nil(t, fail)
	require.Len(t, got, 1)
	assert.EqualValues(t, 6, got[0].Severity)
}

func TestExtractDiscrepancies_Empty(t *testing.T) {
	t.Parallel()

	got, fail := ExtractDiscrepancies(`json:{"discrepancies": []}`)
	require.Nil(t, fail)
	assert.Empty(t, got)

	_, fail = ExtractDiscrepancies("no discrepancies found")
	require.NotNil(t, fail)
	assert.Equal(t, NoJsonMarker, fail.Kind)
}
