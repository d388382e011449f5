// Package compare turns an LLM-generated comparison CSV into typed rows and
// splits them into match and discrepancy reports.
package compare

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// ErrNoRows means the response held no usable comparison rows.
var ErrNoRows = eris.New("compare: no comparison rows in response")

type column int

const (
	colFeature column = iota
	colValueA
	colValueB
	colState
	colAuthority
	colSuggestion
	colSeverity
)

// ParseCSV reads comparison rows out of raw model output. Malformed lines are
// skipped; rows are normalized so a match never carries an authority.
func ParseCSV(raw string) ([]model.ComparisonRow, error) {
	text := cleanCSV(raw)

	start := headerOffset(text)
	if start < 0 {
		return nil, eris.Wrap(ErrNoRows, "header row not found")
	}

	r := csv.NewReader(strings.NewReader(text[start:]))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "compare: read header")
	}
	index := mapHeader(header)
	if _, ok := index[colFeature]; !ok {
		return nil, eris.Wrap(ErrNoRows, "no Feature column")
	}

	var rows []model.ComparisonRow
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			return nil, eris.Wrap(err, "compare: read row")
		}
		if len(rec) > len(header) {
			continue
		}
		row, ok := buildRow(rec, index)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

func cleanCSV(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\"`, `"`)

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

// headerOffset returns the byte offset of the first line naming the Feature column.
func headerOffset(text string) int {
	off := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		l := strings.TrimLeft(strings.ToLower(strings.TrimSpace(line)), `"'`)
		if strings.HasPrefix(l, "feature") && strings.Contains(l, ",") {
			return off
		}
		off += len(line)
	}
	return -1
}

func mapHeader(header []string) map[column]int {
	index := make(map[column]int)
	for i, h := range header {
		h = strings.ToLower(strings.Trim(strings.TrimSpace(h), `"'`))
		var c column
		switch {
		case h == "feature":
			c = colFeature
		case h == "file 1 value":
			c = colValueA
		case h == "file 2 value":
			c = colValueB
		case h == "match/discrepancy":
			c = colState
		case h == "authority":
			c = colAuthority
		case strings.HasPrefix(h, "suggestion"):
			c = colSuggestion
		case strings.HasPrefix(h, "severity"):
			c = colSeverity
		default:
			continue
		}
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	return index
}

func buildRow(rec []string, index map[column]int) (model.ComparisonRow, bool) {
	cell := func(c column) string {
		i, ok := index[c]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	feature := cell(colFeature)
	if feature == "" {
		return model.ComparisonRow{}, false
	}
	state, ok := parseState(cell(colState))
	if !ok {
		return model.ComparisonRow{}, false
	}

	row := model.ComparisonRow{
		Feature:    feature,
		ValueA:     cell(colValueA),
		ValueB:     cell(colValueB),
		MatchState: state,
		Authority:  model.ParseAuthority(cell(colAuthority)),
		Suggestion: cell(colSuggestion),
		Severity:   parseSeverity(cell(colSeverity)),
	}
	row.Normalize()
	return row, true
}

func parseState(s string) (model.MatchState, bool) {
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "match"):
		return model.StateMatch, true
	case strings.Contains(s, "discrep"), strings.Contains(s, "mismatch"):
		return model.StateDiscrepancy, true
	}
	return "", false
}

func parseSeverity(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// Table renders rows with the fixed comparison columns.
func Table(rows []model.ComparisonRow) model.Table {
	t := model.Table{Header: append([]string(nil), model.ComparisonColumns...)}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Cells())
	}
	return t
}

// Report holds comparison rows split by match state.
type Report struct {
	Matches       []model.ComparisonRow
	Discrepancies []model.ComparisonRow
}

// Split partitions rows, keeping their order.
func Split(rows []model.ComparisonRow) Report {
	rep := Report{
		Matches:       []model.ComparisonRow{},
		Discrepancies: []model.ComparisonRow{},
	}
	for _, r := range rows {
		if r.MatchState == model.StateMatch {
			rep.Matches = append(rep.Matches, r)
		} else {
			rep.Discrepancies = append(rep.Discrepancies, r)
		}
	}
	return rep
}

type matchesFile struct {
	TotalMatches int                   `json:"total_matches"`
	Features     []model.ComparisonRow `json:"features"`
}

type discrepanciesFile struct {
	TotalDiscrepancies int                   `json:"total_discrepancies"`
	Features           []model.ComparisonRow `json:"features"`
}

// WriteFiles writes matches.json and discrepancies.json into dir and returns
// their paths.
func (r Report) WriteFiles(dir string) (matchesPath, discrepanciesPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", eris.Wrapf(err, "compare: create %s", dir)
	}

	matchesPath = filepath.Join(dir, "matches.json")
	if err := writeJSON(matchesPath, matchesFile{len(r.Matches), r.Matches}); err != nil {
		return "", "", err
	}
	discrepanciesPath = filepath.Join(dir, "discrepancies.json")
	if err := writeJSON(discrepanciesPath, discrepanciesFile{len(r.Discrepancies), r.Discrepancies}); err != nil {
		return "", "", err
	}

	zap.L().Info("comparison reports written",
		zap.Int("matches", len(r.Matches)),
		zap.Int("discrepancies", len(r.Discrepancies)),
		zap.String("dir", dir),
	)
	return matchesPath, discrepanciesPath, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "compare: encode %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "compare: write %s", path)
	}
	return nil
}
