package llm

import (
	"encoding/json"
	"strings"
)

// EnvelopeKind identifies which response shape the endpoint used.
type EnvelopeKind int

const (
	KindUnrecognized EnvelopeKind = iota
	// KindFullResponse is {"fullResponse": "..."}; the string may itself be a
	// JSON document holding a "generation" field.
	KindFullResponse
	// KindGeneration is {"generation": "..."}.
	KindGeneration
	// KindChatChoice is {"choices": [{"message": {"content": "..."}}]}.
	KindChatChoice
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindFullResponse:
		return "full_response"
	case KindGeneration:
		return "generation"
	case KindChatChoice:
		return "chat_choice"
	}
	return "unrecognized"
}

// Envelope is a decoded response body.
type Envelope struct {
	Kind EnvelopeKind
	Text string
}

type rawEnvelope struct {
	FullResponse *json.RawMessage `json:"fullResponse"`
	Generation   *json.RawMessage `json:"generation"`
	Choices      []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// DecodeEnvelope classifies a 200 response body and extracts its text.
func DecodeEnvelope(body []byte) Envelope {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{Kind: KindUnrecognized}
	}

	switch {
	case raw.FullResponse != nil:
		text, ok := stringOrJSON(*raw.FullResponse)
		if !ok {
			return Envelope{Kind: KindUnrecognized}
		}
		return Envelope{Kind: KindFullResponse, Text: unwrapGeneration(text)}
	case raw.Generation != nil:
		text, ok := stringOrJSON(*raw.Generation)
		if !ok {
			return Envelope{Kind: KindUnrecognized}
		}
		return Envelope{Kind: KindGeneration, Text: text}
	case len(raw.Choices) > 0 && raw.Choices[0].Message.Content != nil:
		return Envelope{Kind: KindChatChoice, Text: *raw.Choices[0].Message.Content}
	}
	return Envelope{Kind: KindUnrecognized}
}

// stringOrJSON returns a JSON string's value, or the raw text of any other
// non-null JSON value.
func stringOrJSON(m json.RawMessage) (string, bool) {
	if string(m) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s, true
	}
	return string(m), true
}

// unwrapGeneration handles a fullResponse string that is itself a JSON
// document, returning its "generation" text when present.
func unwrapGeneration(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return text
	}
	var inner struct {
		Generation *string `json:"generation"`
	}
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil || inner.Generation == nil {
		return text
	}
	return *inner.Generation
}
