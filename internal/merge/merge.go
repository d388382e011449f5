// Package merge folds per-chunk extraction results into one record.
package merge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/parse"
)

// Separator joins conflicting candidate values.
const Separator = " | "

// Stats summarises a merge.
type Stats struct {
	Chunks       int `json:"chunks"`
	Parsed       int `json:"parsed"`
	Failed       int `json:"failed"`
	FilledFields int `json:"filled_fields"`
}

// Merge builds a record from chunk results. See MergeWithStats.
func Merge(schema model.FieldSchema, results []parse.Result) *model.StructuredRecord {
	rec, _ := MergeWithStats(schema, results)
	return rec
}

// MergeWithStats builds a record with every schema field. Results are
// consumed in chunk index order. A field keeps null with no candidates, the
// value itself with one distinct candidate, and the distinct candidates
// joined with " | " in first-seen order otherwise. Candidates that
// print the same are one candidate; the first one seen is kept. Failed chunks and keys
// outside the schema are ignored.
func MergeWithStats(schema model.FieldSchema, results []parse.Result) (*model.StructuredRecord, Stats) {
	ordered := make([]parse.Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	stats := Stats{Chunks: len(results)}
	candidates := make(map[string][]any, len(schema))
	seen := make(map[string]map[string]bool, len(schema))

	for _, r := range ordered {
		if !r.OK() {
			stats.Failed++
			continue
		}
		stats.Parsed++

		for _, field := range schema {
			v, ok := r.Fields[field]
			if !ok || IsEmpty(v) {
				continue
			}
			key := canonical(v)
			if seen[field] == nil {
				seen[field] = make(map[string]bool)
			}
			if seen[field][key] {
				continue
			}
			seen[field][key] = true
			candidates[field] = append(candidates[field], v)
		}
	}

	rec := model.NewStructuredRecord(schema)
	for _, field := range schema {
		vals := candidates[field]
		switch len(vals) {
		case 0:
		case 1:
			rec.Values[field] = vals[0]
		default:
			parts := make([]string, len(vals))
			for i, v := range vals {
				parts[i] = display(v)
			}
			rec.Values[field] = strings.Join(parts, Separator)
		}
	}
	stats.FilledFields = rec.Filled()
	return rec, stats
}

// IsEmpty reports whether v is one of the empty sentinels: null, "null", "", "N/A".
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		switch t {
		case "", "null", "N/A":
			return true
		}
	}
	return false
}

// canonical keys a value for distinctness by its printed form, so the
// string "1" and the number 1 count as one candidate.
func canonical(v any) string {
	return strings.TrimSpace(display(v))
}

func display(v any) string {
	switch t := v.(type) {
	case map[string]any, []any:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
