// Package prompt renders the instruction templates sent to the LLM.
// Rendering is pure: no I/O beyond string building.
package prompt

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/termsheet-cli/internal/model"
)

const extractionPrompt = `You are an expert financial analyst. You have to extract the following features from the text chunk below.
Extract a feature only if it is present in the text chunk and the value makes sense for that feature.
Be extra careful when the text chunk contains tables.

-START OF FEATURES LIST-
%s
-END OF FEATURES LIST-

Rules:
- Return ONLY a single valid JSON object containing every feature above as a key. Do not explain anything.
- If a feature value is not present, use null. Do not include placeholders or notes.
- Extract a feature only if you are certain it is present in the text. Otherwise put null.
- Do not put quotes around numerical values.
- Write numbers without thousands separators: 1,000,000,000 becomes 1000000000.

Follow this output format: json:{"feature1": "value1", "feature2": "value2", ...}

-START OF TERMSHEET-
%s
-END OF TERMSHEET-`

const comparisonPrompt = `You are given two tabular datasets. These are features extracted from a termsheet and a reference mapsheet. Compare them and list every feature with its values.

=== FILE 1 ===
%s
=== FILE 2 ===
%s
=== COMPARISON ===
Format your response as CSV with exactly these columns: %s.
The Authority column names who is responsible for the feature. Choose one of Lawyer, Accountant, Other, Not-Valid. Choose Not-Valid if the Match/Discrepancy column is Match.
The Suggestion column describes how to fix the discrepancy.
The Match/Discrepancy column is Match if the values are the same and Discrepancy if they differ.
The Severity Score is a number between 1 and 10, where 1 is the least severe and 10 the most severe.
ONLY GIVE RAW CSV TEXT. DO NOT GIVE ANY OTHER TEXT OR EXPLANATION.`

const discrepancyPrompt = `You are an expert in identifying discrepancies between legal documents.

You are given a chunk of text from a PDF document and validated termsheet data.
Identify every discrepancy between the text and the termsheet data. For each one:
1. Copy the exact text from the PDF chunk that contains the discrepancy.
2. Name the termsheet field it relates to.
3. Explain the discrepancy briefly.
4. Rate the severity from 1 (minor) to 10 (critical).

Follow this output format: json:{"discrepancies": [{"text_to_highlight": "exact text from the PDF", "related_termsheet_field": "field name", "termsheet_value": "value from termsheet", "document_value": "value found in document", "explanation": "brief explanation", "severity": 5}]}
If there are no discrepancies respond with: json:{"discrepancies": []}

===== PDF TEXT =====
%s
===== END PDF TEXT =====

===== TERMSHEET DATA =====
%s
===== END TERMSHEET DATA =====`

// Extraction renders the per-chunk field extraction prompt.
func Extraction(chunkText string, schema model.FieldSchema) string {
	return fmt.Sprintf(extractionPrompt, strings.Join(schema, ", "), chunkText)
}

// Comparison renders the table comparison prompt with both tables as CSV.
func Comparison(a, b model.Table) string {
	quoted := make([]string, len(model.ComparisonColumns))
	for i, c := range model.ComparisonColumns {
		quoted[i] = "'" + c + "'"
	}
	return fmt.Sprintf(comparisonPrompt, TableCSV(a), TableCSV(b), strings.Join(quoted, ", "))
}

// Discrepancy renders the prompt asking for discrepancies between a chunk of
// the source document and the reference record. Reference keys are sorted.
func Discrepancy(chunkText string, reference map[string]any) string {
	return fmt.Sprintf(discrepancyPrompt, chunkText, referenceJSON(reference))
}

// TableCSV serializes a table as CSV text.
func TableCSV(t model.Table) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(t.Header)
	for _, r := range t.Rows {
		_ = w.Write(r)
	}
	w.Flush()
	return buf.String()
}

func referenceJSON(ref map[string]any) string {
	keys := make([]string, 0, len(ref))
	for k := range ref {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range keys {
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(ref[k])
		if err != nil {
			vb, _ = json.Marshal(fmt.Sprint(ref[k]))
		}
		fmt.Fprintf(&b, "  %s: %s", kb, vb)
		if i < len(keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}")
	return b.String()
}
