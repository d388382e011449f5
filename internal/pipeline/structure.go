package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/chunk"
	"github.com/sells-group/termsheet-cli/internal/merge"
	"github.com/sells-group/termsheet-cli/internal/metrics"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/parse"
	"github.com/sells-group/termsheet-cli/internal/prompt"
	"github.com/sells-group/termsheet-cli/internal/store"
	"github.com/sells-group/termsheet-cli/internal/tabular"
)

// StructuredSheetName is the file name of the structured CSV artifact.
const StructuredSheetName = "structured_sheet.csv"

// StructureOutput is the result of structuring one document.
type StructureOutput struct {
	Record  *model.StructuredRecord
	Stats   merge.Stats
	Results []parse.Result
	Stage   model.Stage
}

// Structure extracts schema fields from spans: chunk, prompt every chunk,
// call the gateway on the worker pool, parse, then merge in chunk order.
// Chunk failures are kept in the results; only a configuration error or
// every chunk failing at the gateway fails the document.
func (p *Pipeline) Structure(ctx context.Context, id string, spans []model.TextSpan, schema model.FieldSchema) (*StructureOutput, error) {
	return p.structure(ctx, NewTracker(id), spans, schema)
}

func (p *Pipeline) structure(ctx context.Context, tr *Tracker, spans []model.TextSpan, schema model.FieldSchema) (*StructureOutput, error) {
	out := &StructureOutput{}
	finish := func(err error) (*StructureOutput, error) {
		out.Stage = tr.Stage()
		return out, err
	}

	if len(schema) == 0 {
		return finish(tr.Fail(ErrSchemaUnavailable))
	}

	chunks, err := chunk.Split(spans, p.cfg.Chunk.MaxChars, p.cfg.Chunk.OverlapChars)
	if err != nil {
		return finish(tr.Fail(err))
	}
	if err := tr.Advance(model.StageChunked); err != nil {
		return finish(err)
	}

	prompts := make([]string, len(chunks))
	for i, c := range chunks {
		prompts[i] = prompt.Extraction(c.Text, schema)
	}
	if err := tr.Advance(model.StagePrompted); err != nil {
		return finish(err)
	}

	raw := Map(ctx, p.pool(), len(prompts), func(ctx context.Context, i int) callResult {
		text, err := p.llm.Call(ctx, prompts[i])
		return callResult{text: text, err: err}
	})
	if err := tr.Advance(model.StageLLMCalled); err != nil {
		return finish(err)
	}

	out.Results = make([]parse.Result, len(raw))
	gatewayFailures := 0
	for i, r := range raw {
		res := parse.Result{Index: chunks[i].Index}
		switch {
		case r.err != nil:
			res.Err = r.err
			gatewayFailures++
			metrics.Chunks.WithLabelValues("llm_failed").Inc()
			zap.L().Warn("chunk call failed", zap.String("document", tr.id), zap.Int("chunk", i), zap.Error(r.err))
		default:
			fields, failure := parse.ExtractJSON(r.text)
			res.Fields, res.Failure = fields, failure
			if failure != nil {
				metrics.Chunks.WithLabelValues("parse_failed").Inc()
				zap.L().Info("chunk parse failed",
					zap.String("document", tr.id),
					zap.Int("chunk", i),
					zap.String("kind", failure.Kind.String()),
					zap.String("snippet", failure.Snippet),
				)
			} else {
				metrics.Chunks.WithLabelValues("parsed").Inc()
			}
		}
		out.Results[i] = res
	}
	if err := tr.Advance(model.StageParsedOrFailed); err != nil {
		return finish(err)
	}

	if len(chunks) > 0 && gatewayFailures == len(chunks) {
		cause := raw[len(raw)-1].err
		return finish(tr.Fail(eris.Wrapf(ErrAllChunksFailed, "%d chunks, last: %v", len(chunks), cause)))
	}

	out.Record, out.Stats = merge.MergeWithStats(schema, out.Results)
	if err := tr.Advance(model.StageMerged); err != nil {
		return finish(err)
	}

	zap.L().Info("document structured",
		zap.String("document", tr.id),
		zap.Int("chunks", out.Stats.Chunks),
		zap.Int("parsed", out.Stats.Parsed),
		zap.Int("failed", out.Stats.Failed),
		zap.Int("filled_fields", out.Stats.FilledFields),
	)
	return finish(nil)
}

type callResult struct {
	text string
	err  error
}

// StructureTermsheet structures the termsheet's source document, writes the
// structured CSV and attaches it as the structured sheet.
func (p *Pipeline) StructureTermsheet(ctx context.Context, id, dir string) (*StructureOutput, error) {
	tr := NewTracker(id)

	src, ft, err := p.fetch(ctx, id, model.RoleTermsheet, dir)
	if err != nil {
		return nil, tr.Fail(err)
	}
	spans, err := p.decoder.Spans(ctx, src, ft)
	if err != nil {
		return nil, tr.Fail(eris.Wrapf(err, "pipeline: decode %s", filepath.Base(src)))
	}
	schema, err := p.schemaFor(ctx, id, dir)
	if err != nil {
		return nil, tr.Fail(err)
	}

	out, err := p.structure(ctx, tr, spans, schema)
	if err != nil {
		return out, err
	}

	csvPath := filepath.Join(dir, StructuredSheetName)
	if err := writeRecordCSV(csvPath, out.Record); err != nil {
		return out, tr.Fail(err)
	}
	if _, err := p.publish(ctx, id, model.RoleStructured, csvPath, model.FileTypeCSV); err != nil {
		return out, tr.Fail(err)
	}
	if err := tr.Advance(model.StagePersisted); err != nil {
		return out, err
	}
	out.Stage = tr.Stage()
	return out, nil
}

// schemaFor prefers the mapsheet's header row and falls back to the
// configured schema when no mapsheet is attached.
func (p *Pipeline) schemaFor(ctx context.Context, id, dir string) (model.FieldSchema, error) {
	mapPath, _, err := p.fetch(ctx, id, model.RoleMapsheet, dir)
	if errors.Is(err, store.ErrNotFound) {
		if len(p.schema) == 0 {
			return nil, ErrSchemaUnavailable
		}
		return p.schema, nil
	}
	if err != nil {
		return nil, err
	}
	schema, err := tabular.ReadHeader(mapPath)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read mapsheet header")
	}
	return schema, nil
}

func writeRecordCSV(path string, rec *model.StructuredRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", path)
	}
	if err := tabular.WriteCSV(f, tabular.RecordTable(rec, "null")); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "pipeline: close %s", path)
}
