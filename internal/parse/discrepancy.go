package parse

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// ExtractDiscrepancies decodes a {"discrepancies": [...]} payload. When the
// json: marker is missing it falls back to the outermost braces in the text.
// Entries without text to highlight are dropped.
func ExtractDiscrepancies(raw string) ([]model.DiscrepancyEntry, *Failure) {
	payload, fail := payloadAfterMarker(raw)
	if fail != nil && fail.Kind == NoJsonMarker {
		text := stripThinking(raw)
		start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
		if start < 0 || end <= start {
			return nil, fail
		}
		payload, fail = text[start:end+1], nil
	}
	if fail != nil {
		return nil, fail
	}

	var envelope struct {
		Discrepancies []model.DiscrepancyEntry `json:"discrepancies"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		cleaned := unescape(payload)
		if err2 := json.Unmarshal([]byte(cleaned), &envelope); err2 != nil {
			return nil, &Failure{Kind: InvalidJson, Snippet: truncate(cleaned), Cause: err2}
		}
	}

	out := envelope.Discrepancies[:0]
	for _, d := range envelope.Discrepancies {
		if strings.TrimSpace(d.TextToHighlight) == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
