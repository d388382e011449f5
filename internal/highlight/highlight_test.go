package highlight

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/termsheet-cli/internal/metrics"
	"github.com/sells-group/termsheet-cli/internal/model"
)

func span(page int, text string, y float64) model.TextSpan {
	return model.TextSpan{Text: text, Page: page, BBox: model.BBox{X0: 10, Y0: y, X1: 200, Y1: y + 12}}
}

func TestSeverityColor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.RGB{R: 1, G: 1, B: 0.7}, SeverityColor(1))

	high := SeverityColor(10)
	assert.InDelta(t, 1.0, high.R, 1e-9)
	assert.InDelta(t, 0.3, high.G, 1e-9)
	assert.InDelta(t, 0.05, high.B, 1e-9)

	assert.Equal(t, SeverityColor(10), SeverityColor(42))
	assert.Equal(t, SeverityColor(1), SeverityColor(-3))
	assert.Equal(t, SeverityColor(5), SeverityColor(0), "unset severity uses the default")

	prev := SeverityColor(1)
	for s := 2; s <= 10; s++ {
		c := SeverityColor(s)
		assert.Less(t, c.G, prev.G)
		assert.Less(t, c.B, prev.B)
		prev = c
	}
}

func TestComment(t *testing.T) {
	t.Parallel()

	got := Comment(model.DiscrepancyEntry{
		Explanation:    "Coupon differs",
		RelatedField:   "Coupon",
		ReferenceValue: "5%",
		DocumentValue:  "4.5%",
		Severity:       8,
	})
	assert.Equal(t, "Discrepancy: Coupon differs\nTermsheet field: Coupon\nTermsheet value: 5%\nDocument value: 4.5%\nSeverity: 8/10", got)
}

func TestHighlighter_Annotate_ExactSpan(t *testing.T) {
	t.Parallel()

	spans := []model.TextSpan{span(0, "Issuer: ACME", 10), span(0, "Coupon: 4.5%", 30)}
	doc := model.NewAnnotatedDocument("ts.pdf", spans)
	chunk := model.NewChunk(0, spans)

	h := New(doc)
	n, missed := h.Annotate(chunk, []model.DiscrepancyEntry{{
		TextToHighlight: "Coupon: 4.5%",
		RelatedField:    "Coupon",
		Severity:        10,
	}})

	assert.Equal(t, 1, n)
	assert.Empty(t, missed)
	require.Len(t, doc.Annotations, 1)
	assert.Equal(t, spans[1].BBox, doc.Annotations[0].Rect)
	assert.Equal(t, SeverityColor(10), doc.Annotations[0].Color)
	assert.Equal(t, "Coupon", doc.Annotations[0].Field)
}

func TestHighlighter_Annotate_NotFound(t *testing.T) {
	t.Parallel()

	spans := []model.TextSpan{span(0, "Issuer: ACME", 10)}
	doc := model.NewAnnotatedDocument("ts.pdf", spans)

	entry := model.DiscrepancyEntry{TextToHighlight: "Maturity: 2030", Severity: 3}
	n, missed := New(doc).Annotate(model.NewChunk(0, spans), []model.DiscrepancyEntry{entry})

	assert.Zero(t, n)
	assert.Equal(t, []model.DiscrepancyEntry{entry}, missed)
	assert.Empty(t, doc.Annotations)
	assert.Len(t, doc.Pages[0], 1)
}

func TestHighlighter_Annotate_RecurringExcerpt(t *testing.T) {
	t.Parallel()

	spans := []model.TextSpan{
		span(0, "Notional EUR 10m", 10),
		span(0, "Fee: 1%", 30),
		span(0, "Notional EUR 10m again", 50),
		span(1, "Notional EUR 10m", 10),
	}
	doc := model.NewAnnotatedDocument("ts.pdf", spans)

	n, missed := New(doc).Annotate(model.NewChunk(0, spans), []model.DiscrepancyEntry{{TextToHighlight: "EUR 10m"}})
	assert.Equal(t, 2, n, "counted once per page")
	assert.Empty(t, missed)
	assert.Len(t, doc.Annotations, 3, "every occurrence flagged")
}

func TestHighlighter_Annotate_OnlyChunkPages(t *testing.T) {
	t.Parallel()

	first := span(0, "Issuer: ACME", 10)
	second := span(1, "Issuer: ACME", 10)
	doc := model.NewAnnotatedDocument("ts.pdf", []model.TextSpan{first, second})

	n, _ := New(doc).Annotate(model.NewChunk(0, []model.TextSpan{second}), []model.DiscrepancyEntry{{TextToHighlight: "ACME"}})
	assert.Equal(t, 1, n)
	require.Len(t, doc.Annotations, 1)
	assert.Equal(t, 1, doc.Annotations[0].Page)
}

func TestHighlighter_Annotate_EmptyExcerptSkipped(t *testing.T) {
	t.Parallel()

	spans := []model.TextSpan{span(0, "Issuer: ACME", 10)}
	doc := model.NewAnnotatedDocument("ts.pdf", spans)

	n, missed := New(doc).Annotate(model.NewChunk(0, spans), []model.DiscrepancyEntry{{TextToHighlight: "  "}})
	assert.Zero(t, n)
	assert.Len(t, missed, 1)
	assert.Empty(t, doc.Annotations)
}

func TestLocateAndAnnotate(t *testing.T) {
	spans := []model.TextSpan{span(0, "Issuer: ACME", 10), span(0, "Coupon: 4.5%", 30), span(1, "Maturity: 2030", 10)}
	doc := model.NewAnnotatedDocument("ts.pdf", spans)

	// Overlapping chunks can report the same discrepancy twice.
	first := model.NewChunk(0, spans[:2])
	second := model.NewChunk(1, spans[1:])

	missesBefore := testutil.ToFloat64(metrics.LocateMisses)

	res := LocateAndAnnotate(doc, []ChunkDiscrepancies{
		{Chunk: first, Entries: []model.DiscrepancyEntry{{TextToHighlight: "4.5%", Severity: 6}, {TextToHighlight: "missing"}}},
		{Chunk: second, Entries: []model.DiscrepancyEntry{{TextToHighlight: "4.5%", Severity: 6}, {TextToHighlight: "2030"}}},
	})

	assert.Equal(t, 3, res.Highlighted)
	assert.Equal(t, 1, res.Missed)
	assert.Len(t, doc.Annotations, 2, "duplicate annotation suppressed")
	assert.InDelta(t, missesBefore+1, testutil.ToFloat64(metrics.LocateMisses), 1e-9)
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	doc := model.NewAnnotatedDocument("ts.pdf", nil)
	doc.Annotations = append(doc.Annotations, model.Annotation{Page: 2, Comment: "c", Severity: 4})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(doc, &buf))

	var got struct {
		Source      string             `json:"source"`
		Annotations []model.Annotation `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ts.pdf", got.Source)
	require.Len(t, got.Annotations, 1)
	assert.Equal(t, 2, got.Annotations[0].Page)
}

func TestPDFRenderer_Write_NoAnnotationsCopies(t *testing.T) {
	t.Parallel()

	src := "%PDF-1.4 fake"
	var out bytes.Buffer
	err := NewPDFRenderer().Write(model.NewAnnotatedDocument("x.pdf", nil), strings.NewReader(src), &out)
	require.NoError(t, err)
	assert.Equal(t, src, out.String())
}

func TestHighlightAnnotation_FlipsIntoUserSpace(t *testing.T) {
	t.Parallel()

	a := model.Annotation{
		Page:    0,
		Rect:    model.BBox{X0: 10, Y0: 100, X1: 200, Y1: 112},
		Color:   SeverityColor(8),
		Comment: "Coupon differs",
		Field:   "Coupon",
	}
	ann, ok := highlightAnnotation(a, 792).(pdfmodel.HighlightAnnotation)
	require.True(t, ok)
	assert.InDelta(t, 10, ann.Rect.LL.X, 1e-9)
	assert.InDelta(t, 680, ann.Rect.LL.Y, 1e-9)
	assert.InDelta(t, 200, ann.Rect.UR.X, 1e-9)
	assert.InDelta(t, 692, ann.Rect.UR.Y, 1e-9)
	assert.Equal(t, "Coupon differs", ann.Contents)
}
