package model

import "sort"

// BBox is a rectangle in page coordinates with the origin at the top-left.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Union returns the smallest box covering b and o. A zero box is treated as empty.
func (b BBox) Union(o BBox) BBox {
	if b == (BBox{}) {
		return o
	}
	if o == (BBox{}) {
		return b
	}
	return BBox{
		X0: min(b.X0, o.X0),
		Y0: min(b.Y0, o.Y0),
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
	}
}

// TextSpan is a run of text at a known position in a document. Page is 0-based.
type TextSpan struct {
	Text string  `json:"text"`
	Page int     `json:"page"`
	BBox BBox    `json:"bbox"`
	Font string  `json:"font,omitempty"`
	Size float64 `json:"size,omitempty"`
}

// Chunk is an ordered slice of spans sent to the LLM as one unit.
type Chunk struct {
	Index int        `json:"index"`
	Text  string     `json:"text"`
	Spans []TextSpan `json:"spans"`
	Pages []int      `json:"pages"`
}

// NewChunk builds a chunk from spans, deriving its text and page set.
func NewChunk(index int, spans []TextSpan) Chunk {
	c := Chunk{Index: index, Spans: spans}

	seen := make(map[int]bool)
	n := 0
	for i, s := range spans {
		if i > 0 {
			n++
		}
		n += len(s.Text)
		if !seen[s.Page] {
			seen[s.Page] = true
			c.Pages = append(c.Pages, s.Page)
		}
	}
	sort.Ints(c.Pages)

	buf := make([]byte, 0, n)
	for i, s := range spans {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s.Text...)
	}
	c.Text = string(buf)
	return c
}

// SpansOnPage returns the chunk spans that lie on the given page, in order.
func (c Chunk) SpansOnPage(page int) []TextSpan {
	var out []TextSpan
	for _, s := range c.Spans {
		if s.Page == page {
			out = append(out, s)
		}
	}
	return out
}
