// Package highlight places severity-colored annotations over the spans of a
// document that a discrepancy excerpt points at.
package highlight

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/metrics"
	"github.com/sells-group/termsheet-cli/internal/model"
)

// ChunkDiscrepancies pairs a chunk with the discrepancies reported for it.
type ChunkDiscrepancies struct {
	Chunk   model.Chunk
	Entries []model.DiscrepancyEntry
}

// Result summarizes a locate pass.
type Result struct {
	// Highlighted counts (discrepancy, page) pairs that produced at least one
	// annotation.
	Highlighted int
	// Missed counts discrepancies whose excerpt matched no span.
	Missed int
}

// Highlighter annotates a single document. It is not safe for concurrent use;
// give each document its own Highlighter.
type Highlighter struct {
	doc  *model.AnnotatedDocument
	seen map[annotationKey]bool
}

type annotationKey struct {
	page    int
	rect    model.BBox
	comment string
}

// New creates a Highlighter over doc.
func New(doc *model.AnnotatedDocument) *Highlighter {
	h := &Highlighter{doc: doc, seen: make(map[annotationKey]bool)}
	for _, a := range doc.Annotations {
		h.seen[annotationKey{a.Page, a.Rect, a.Comment}] = true
	}
	return h
}

// Document returns the annotated document.
func (h *Highlighter) Document() *model.AnnotatedDocument {
	return h.doc
}

// Annotate searches every page the chunk touches for each discrepancy's
// excerpt and highlights each span that contains it. It returns how many
// (discrepancy, page) pairs matched and which discrepancies matched nowhere.
func (h *Highlighter) Annotate(chunk model.Chunk, entries []model.DiscrepancyEntry) (int, []model.DiscrepancyEntry) {
	matched := make([]bool, len(entries))
	count := 0

	for _, page := range chunk.Pages {
		spans := h.doc.Pages[page]
		for i, d := range entries {
			needle := d.TextToHighlight
			if strings.TrimSpace(needle) == "" {
				continue
			}
			hit := false
			for _, s := range spans {
				if !strings.Contains(s.Text, needle) {
					continue
				}
				hit = true
				h.add(page, s.BBox, d)
			}
			if hit {
				matched[i] = true
				count++
			}
		}
	}

	var missed []model.DiscrepancyEntry
	for i, ok := range matched {
		if !ok {
			missed = append(missed, entries[i])
		}
	}
	return count, missed
}

func (h *Highlighter) add(page int, rect model.BBox, d model.DiscrepancyEntry) {
	comment := Comment(d)
	key := annotationKey{page, rect, comment}
	if h.seen[key] {
		return
	}
	h.seen[key] = true

	sev := model.ClampSeverity(int(d.Severity))
	h.doc.Annotations = append(h.doc.Annotations, model.Annotation{
		Page:     page,
		Rect:     rect,
		Color:    SeverityColor(int(sev)),
		Comment:  comment,
		Severity: sev,
		Field:    d.RelatedField,
	})
	metrics.Highlights.Inc()
}

// LocateAndAnnotate annotates doc with every chunk's discrepancies, in chunk
// order. Excerpts that match nowhere are logged and counted, never fatal.
func LocateAndAnnotate(doc *model.AnnotatedDocument, results []ChunkDiscrepancies) Result {
	h := New(doc)
	var res Result
	for _, r := range results {
		n, missed := h.Annotate(r.Chunk, r.Entries)
		res.Highlighted += n
		res.Missed += len(missed)
		for _, d := range missed {
			metrics.LocateMisses.Inc()
			zap.L().Info("discrepancy text not found",
				zap.String("source", doc.Source),
				zap.Int("chunk", r.Chunk.Index),
				zap.String("field", d.RelatedField),
				zap.String("text", d.TextToHighlight),
			)
		}
	}

	zap.L().Info("highlighting complete",
		zap.String("source", doc.Source),
		zap.Int("highlighted", res.Highlighted),
		zap.Int("missed", res.Missed),
		zap.Int("annotations", len(doc.Annotations)),
	)
	return res
}
