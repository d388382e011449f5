package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultSeverity is used when the model omits or garbles a severity.
const DefaultSeverity = 5

// Severity is an integer score clamped to 1..10. It decodes from JSON
// numbers or numeric strings.
type Severity int

// UnmarshalJSON accepts 7, 7.0, "7" and falls back to DefaultSeverity.
func (s *Severity) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*s = DefaultSeverity
		return nil
	}
	*s = ClampSeverity(int(f))
	return nil
}

// ClampSeverity bounds v to 1..10; zero means unset and maps to the default.
func ClampSeverity(v int) Severity {
	switch {
	case v == 0:
		return DefaultSeverity
	case v < 1:
		return 1
	case v > 10:
		return 10
	}
	return Severity(v)
}

// DiscrepancyEntry is one mismatch reported by the LLM for a chunk.
type DiscrepancyEntry struct {
	TextToHighlight string   `json:"text_to_highlight"`
	RelatedField    string   `json:"related_termsheet_field"`
	ReferenceValue  string   `json:"termsheet_value"`
	DocumentValue   string   `json:"document_value"`
	Explanation     string   `json:"explanation"`
	Severity        Severity `json:"severity"`
}

// UnmarshalJSON tolerates non-string values in the text fields and a missing severity.
func (d *DiscrepancyEntry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.TextToHighlight = looseString(raw["text_to_highlight"])
	d.RelatedField = looseString(raw["related_termsheet_field"])
	d.ReferenceValue = looseString(raw["termsheet_value"])
	d.DocumentValue = looseString(raw["document_value"])
	d.Explanation = looseString(raw["explanation"])
	d.Severity = DefaultSeverity
	if sev, ok := raw["severity"]; ok {
		if err := d.Severity.UnmarshalJSON(sev); err != nil {
			return err
		}
	}
	return nil
}

func looseString(m json.RawMessage) string {
	if len(m) == 0 || string(m) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(m))
}

// MatchState says whether two compared values agree.
type MatchState string

const (
	StateMatch       MatchState = "Match"
	StateDiscrepancy MatchState = "Discrepancy"
)

// Authority names who should resolve a discrepancy.
type Authority string

const (
	AuthorityLawyer     Authority = "Lawyer"
	AuthorityAccountant Authority = "Accountant"
	AuthorityOther      Authority = "Other"
	AuthorityNotValid   Authority = "Not-Valid"
)

// ParseAuthority maps free text onto the fixed vocabulary; unknown values become Other.
func ParseAuthority(s string) Authority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lawyer":
		return AuthorityLawyer
	case "accountant":
		return AuthorityAccountant
	case "not-valid", "not valid", "notvalid", "n/a", "":
		return AuthorityNotValid
	}
	return AuthorityOther
}

// ComparisonColumns is the fixed column set of a comparison table.
var ComparisonColumns = []string{
	"Feature",
	"File 1 Value",
	"File 2 Value",
	"Match/Discrepancy",
	"Authority",
	"Suggestion",
	"Severity Score",
}

// ComparisonRow is one feature compared across two tables.
type ComparisonRow struct {
	Feature    string     `json:"Feature"`
	ValueA     string     `json:"File 1 Value"`
	ValueB     string     `json:"File 2 Value"`
	MatchState MatchState `json:"Match/Discrepancy"`
	Authority  Authority  `json:"Authority"`
	Suggestion string     `json:"Suggestion"`
	Severity   int        `json:"Severity Score"`
}

// Normalize enforces row invariants: matches carry no authority and
// severity stays within 1..10.
func (r *ComparisonRow) Normalize() {
	if r.MatchState == StateMatch {
		r.Authority = AuthorityNotValid
	}
	r.Severity = int(ClampSeverity(r.Severity))
}

// Cells renders the row in ComparisonColumns order.
func (r ComparisonRow) Cells() []string {
	return []string{
		r.Feature,
		r.ValueA,
		r.ValueB,
		string(r.MatchState),
		string(r.Authority),
		r.Suggestion,
		strconv.Itoa(r.Severity),
	}
}

// RGB is a color with components in 0..1.
type RGB struct {
	R, G, B float64
}

// Annotation is a highlight placed over a span.
type Annotation struct {
	Page     int      `json:"page"`
	Rect     BBox     `json:"rect"`
	Color    RGB      `json:"color"`
	Comment  string   `json:"comment"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
}

// AnnotatedDocument is a document's spans grouped by page plus the
// annotations placed on it. It has one owner at a time.
type AnnotatedDocument struct {
	Source      string
	Pages       map[int][]TextSpan
	Annotations []Annotation
}

// NewAnnotatedDocument groups spans by page.
func NewAnnotatedDocument(source string, spans []TextSpan) *AnnotatedDocument {
	d := &AnnotatedDocument{Source: source, Pages: make(map[int][]TextSpan)}
	for _, s := range spans {
		d.Pages[s.Page] = append(d.Pages[s.Page], s)
	}
	return d
}

// AnnotationsByPage groups annotations by page.
func (d *AnnotatedDocument) AnnotationsByPage() map[int][]Annotation {
	out := make(map[int][]Annotation)
	for _, a := range d.Annotations {
		out[a.Page] = append(out[a.Page], a)
	}
	return out
}
