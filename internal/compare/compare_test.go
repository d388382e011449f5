package compare

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/termsheet-cli/internal/model"
)

const cannedCSV = "```csv\n" +
	`"Feature","File 1 Value","File 2 Value","Match/Discrepancy","Authority","Suggestion","Severity Score"` + "\n" +
	`"ISIN","XS0001","XS0001","Match","Lawyer","None","1"` + "\n" +
	`"Coupon","5%","4.5%","Discrepancy","Accountant","Use 5%","8"` + "\n" +
	`"Currency","EUR","EUR","Match","Not-Valid","None","1"` + "\n" +
	"```"

func TestParseCSV_OneDiscrepancyTwoMatches(t *testing.T) {
	t.Parallel()

	rows, err := ParseCSV(cannedCSV)
	require.NoError(t, err)

	rep := Split(rows)
	require.Len(t, rep.Discrepancies, 1)
	assert.Len(t, rep.Matches, 2)
	assert.Equal(t, "Coupon", rep.Discrepancies[0].Feature)
	assert.Equal(t, model.AuthorityAccountant, rep.Discrepancies[0].Authority)
	assert.Equal(t, 8, rep.Discrepancies[0].Severity)

	for _, m := range rep.Matches {
		assert.Equal(t, model.AuthorityNotValid, m.Authority)
	}
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    []model.ComparisonRow
		wantErr bool
	}{
		{
			name: "escaped newlines and quotes",
			raw:  `Feature,File 1 Value,File 2 Value,Match/Discrepancy,Authority,Suggestion,Severity Score\n\"Issuer\",ACME,ACME Corp,Discrepancy,Lawyer,\"Align names\",6`,
			want: []model.ComparisonRow{{
				Feature: "Issuer", ValueA: "ACME", ValueB: "ACME Corp",
				MatchState: model.StateDiscrepancy, Authority: model.AuthorityLawyer,
				Suggestion: "Align names", Severity: 6,
			}},
		},
		{
			name: "preamble and long suggestion header",
			raw: "Here is the comparison, as requested:\n" +
				"Feature,File 1 Value,File 2 Value,Match/Discrepancy,Authority,Suggestion to fix the discrepancy,Severity Score\n" +
				"Tenor,5Y,5Y,Match,Accountant,,\n",
			want: []model.ComparisonRow{{
				Feature: "Tenor", ValueA: "5Y", ValueB: "5Y",
				MatchState: model.StateMatch, Authority: model.AuthorityNotValid,
				Severity: model.DefaultSeverity,
			}},
		},
		{
			name: "bad lines skipped",
			raw: "Feature,File 1 Value,File 2 Value,Match/Discrepancy,Authority,Suggestion,Severity Score\n" +
				"A,1,2,Discrepancy,Other,fix,3,extra,cells\n" +
				",1,1,Match,,,\n" +
				"B,1,1,Unsure,,,\n" +
				"C,x,y,discrepancy,Someone,fix,15\n",
			want: []model.ComparisonRow{{
				Feature: "C", ValueA: "x", ValueB: "y",
				MatchState: model.StateDiscrepancy, Authority: model.AuthorityOther,
				Suggestion: "fix", Severity: 10,
			}},
		},
		{
			name: "short row padded",
			raw:  "Feature,File 1 Value,File 2 Value,Match/Discrepancy,Authority,Suggestion,Severity Score\nD,1,1,Match\n",
			want: []model.ComparisonRow{{
				Feature: "D", ValueA: "1", ValueB: "1",
				MatchState: model.StateMatch, Authority: model.AuthorityNotValid,
				Severity: model.DefaultSeverity,
			}},
		},
		{name: "no header", raw: "nothing useful here", wantErr: true},
		{name: "header only", raw: "Feature,File 1 Value\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCSV(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNoRows)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable(t *testing.T) {
	t.Parallel()

	tbl := Table([]model.ComparisonRow{{Feature: "ISIN", ValueA: "a", ValueB: "a", MatchState: model.StateMatch, Authority: model.AuthorityNotValid, Severity: 1}})
	assert.Equal(t, model.ComparisonColumns, tbl.Header)
	assert.Equal(t, [][]string{{"ISIN", "a", "a", "Match", "Not-Valid", "", "1"}}, tbl.Rows)
}

func TestReport_WriteFiles(t *testing.T) {
	t.Parallel()

	rows, err := ParseCSV(cannedCSV)
	require.NoError(t, err)

	dir := t.TempDir()
	mp, dp, err := Split(rows).WriteFiles(dir)
	require.NoError(t, err)

	var matches struct {
		TotalMatches int              `json:"total_matches"`
		Features     []map[string]any `json:"features"`
	}
	data, err := os.ReadFile(mp)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &matches))
	assert.Equal(t, 2, matches.TotalMatches)
	assert.Equal(t, "ISIN", matches.Features[0]["Feature"])

	var disc struct {
		TotalDiscrepancies int              `json:"total_discrepancies"`
		Features           []map[string]any `json:"features"`
	}
	data, err = os.ReadFile(dp)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &disc))
	assert.Equal(t, 1, disc.TotalDiscrepancies)
	assert.Equal(t, "4.5%", disc.Features[0]["File 2 Value"])
}

func TestSplit_EmptyListsEncodeAsArrays(t *testing.T) {
	t.Parallel()

	rep := Split(nil)
	b, err := json.Marshal(matchesFile{0, rep.Matches})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_matches":0,"features":[]}`, string(b))
}
