// Package parse recovers JSON payloads from free-form model output.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	thinkEnd    = "</think>"
	jsonMarker  = "json:"
	snippetSize = 120
)

// Kind classifies why a response could not be parsed.
type Kind int

const (
	NoJsonMarker Kind = iota + 1
	UnbalancedBraces
	InvalidJson
)

func (k Kind) String() string {
	switch k {
	case NoJsonMarker:
		return "no_json_marker"
	case UnbalancedBraces:
		return "unbalanced_braces"
	case InvalidJson:
		return "invalid_json"
	}
	return "unknown"
}

// Failure is a recoverable parse failure. It is carried as a value in
// per-chunk results and never aborts a run.
type Failure struct {
	Kind    Kind
	Snippet string
	Cause   error
}

func (f *Failure) Error() string {
	if f.Snippet == "" {
		return "parse: " + f.Kind.String()
	}
	return fmt.Sprintf("parse: %s: %q", f.Kind, f.Snippet)
}

func (f *Failure) Unwrap() error { return f.Cause }

// ExtractJSON pulls the JSON object that follows the "json:" marker out of raw
// model output. Any reasoning preamble ending in </think> is discarded first.
func ExtractJSON(raw string) (map[string]any, *Failure) {
	payload, fail := payloadAfterMarker(raw)
	if fail != nil {
		return nil, fail
	}
	return decodeObject(payload)
}

// Result is the outcome of one chunk: parsed fields, a parse failure, or a
// gateway error. Index is the chunk's position in the document.
type Result struct {
	Index   int
	Fields  map[string]any
	Failure *Failure
	Err     error
}

// OK reports whether the chunk produced fields.
func (r Result) OK() bool {
	return r.Failure == nil && r.Err == nil && r.Fields != nil
}

func stripThinking(raw string) string {
	if i := strings.Index(raw, thinkEnd); i >= 0 {
		return strings.TrimSpace(raw[i+len(thinkEnd):])
	}
	return raw
}

func payloadAfterMarker(raw string) (string, *Failure) {
	text := stripThinking(raw)

	idx := strings.Index(text, jsonMarker)
	if idx < 0 {
		idx = strings.Index(text, strings.ToUpper(jsonMarker))
	}
	if idx < 0 {
		return "", &Failure{Kind: NoJsonMarker, Snippet: truncate(text)}
	}

	body, ok := balancedObject(text[idx+len(jsonMarker):])
	if !ok {
		return "", &Failure{Kind: UnbalancedBraces, Snippet: truncate(text[idx:])}
	}
	return body, nil
}

// balancedObject returns s from its first '{' to the brace that brings the
// depth back to zero.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeObject parses the payload as-is and, failing that, after removing
// escaping artifacts the model commonly emits.
func decodeObject(payload string) (map[string]any, *Failure) {
	var out map[string]any
	err := json.Unmarshal([]byte(payload), &out)
	if err == nil && out != nil {
		return out, nil
	}

	cleaned := unescape(payload)
	out = nil
	if err2 := json.Unmarshal([]byte(cleaned), &out); err2 != nil || out == nil {
		cause := err2
		if cause == nil {
			cause = err
		}
		return nil, &Failure{Kind: InvalidJson, Snippet: truncate(cleaned), Cause: cause}
	}
	return out, nil
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "")
	s = strings.ReplaceAll(s, `\`, "")
	return s
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= snippetSize {
		return s
	}
	return s[:snippetSize] + "..."
}
