package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/chunk"
	"github.com/sells-group/termsheet-cli/internal/highlight"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/tabular"
)

// HighlightedName is the file name of the annotated PDF.
const HighlightedName = "highlighted_termsheet.pdf"

// Highlight marks the termsheet PDF wherever the gateway reports a
// discrepancy against the validated sheet, then attaches the annotated copy
// as the colour sheet. Non-PDF termsheets are skipped and return nil.
func (p *Pipeline) Highlight(ctx context.Context, id, dir string) (*highlight.Result, error) {
	tr := NewTracker(id + "/highlight")

	pdfPath, ft, err := p.fetch(ctx, id, model.RoleTermsheet, dir)
	if err != nil {
		return nil, tr.Fail(err)
	}
	if ft != model.FileTypePDF {
		zap.L().Info("pipeline: highlight skipped for non-PDF termsheet",
			zap.String("termsheet_id", id),
			zap.String("type", string(ft)),
		)
		return nil, nil
	}

	valPath, _, err := p.fetch(ctx, id, model.RoleValidated, dir)
	if err != nil {
		return nil, tr.Fail(err)
	}
	validated, err := tabular.Read(valPath)
	if err != nil {
		return nil, tr.Fail(err)
	}

	out := filepath.Join(dir, HighlightedName)
	res, err := p.HighlightFile(ctx, tr, pdfPath, out, ReferenceData(validated))
	if err != nil {
		return nil, err
	}

	if _, err := p.publish(ctx, id, model.RoleColoured, out, model.FileTypePDF); err != nil {
		return &res, tr.Fail(err)
	}
	return &res, tr.Advance(model.StagePersisted)
}

// HighlightFile detects, locates and renders discrepancies for one local
// PDF, leaving tr at StageMerged.
func (p *Pipeline) HighlightFile(ctx context.Context, tr *Tracker, src, dst string, reference map[string]any) (highlight.Result, error) {
	spans, err := p.decoder.Spans(ctx, src, model.FileTypePDF)
	if err != nil {
		return highlight.Result{}, tr.Fail(eris.Wrapf(err, "pipeline: decode %s", filepath.Base(src)))
	}

	chunks, err := chunk.Split(spans, p.cfg.Chunk.HighlightMaxChars, p.cfg.Chunk.HighlightOverlapChars)
	if err != nil {
		return highlight.Result{}, tr.Fail(err)
	}
	if err := tr.Advance(model.StageChunked); err != nil {
		return highlight.Result{}, err
	}
	if err := tr.Advance(model.StagePrompted); err != nil {
		return highlight.Result{}, err
	}

	found, err := Detect(ctx, p.llm, p.pool(), chunks, reference)
	if err != nil {
		return highlight.Result{}, tr.Fail(err)
	}
	if err := tr.Advance(model.StageLLMCalled); err != nil {
		return highlight.Result{}, err
	}
	if err := tr.Advance(model.StageParsedOrFailed); err != nil {
		return highlight.Result{}, err
	}

	doc := model.NewAnnotatedDocument(src, spans)
	res := highlight.LocateAndAnnotate(doc, found)
	if err := p.renderer.Render(doc, src, dst); err != nil {
		return res, tr.Fail(err)
	}
	return res, tr.Advance(model.StageMerged)
}
