// Package pipeline drives termsheets through structuring, validation,
// highlighting and notification.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/termsheet-cli/internal/compare"
	"github.com/sells-group/termsheet-cli/internal/config"
	"github.com/sells-group/termsheet-cli/internal/highlight"
	"github.com/sells-group/termsheet-cli/internal/metrics"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/notify"
	"github.com/sells-group/termsheet-cli/internal/objstore"
	"github.com/sells-group/termsheet-cli/internal/store"
	"github.com/sells-group/termsheet-cli/pkg/llm"
)

var (
	// ErrAllChunksFailed means no chunk of a document got an answer from the
	// LLM gateway.
	ErrAllChunksFailed = eris.New("pipeline: all chunks failed")

	// ErrSchemaUnavailable means neither a mapsheet nor a configured schema
	// names any fields.
	ErrSchemaUnavailable = eris.New("pipeline: field schema unavailable")
)

// SpanSource decodes a downloaded file into positioned text.
type SpanSource interface {
	Spans(ctx context.Context, path string, ft model.FileType) ([]model.TextSpan, error)
}

// Renderer writes a document's annotations into a copy of its source file.
type Renderer interface {
	Render(doc *model.AnnotatedDocument, src, dst string) error
}

// Pipeline runs termsheets end to end.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	objects  objstore.Store
	llm      llm.Client
	decoder  SpanSource
	renderer Renderer
	mailer   notify.Mailer
	schema   model.FieldSchema
}

// New creates a Pipeline. mailer may be nil to skip notification.
func New(
	cfg *config.Config,
	st store.Store,
	objects objstore.Store,
	client llm.Client,
	decoder SpanSource,
	renderer Renderer,
	mailer notify.Mailer,
	schema model.FieldSchema,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		objects:  objects,
		llm:      client,
		decoder:  decoder,
		renderer: renderer,
		mailer:   mailer,
		schema:   schema,
	}
}

// RunResult summarizes one termsheet run.
type RunResult struct {
	TermsheetID string
	Structure   *StructureOutput
	Report      compare.Report
	Highlight   *highlight.Result
	Notified    int
}

// Run structures, validates, highlights and distributes one termsheet. The
// termsheet ends in "TO BE ACCEPTED" on success and "FAILED" otherwise.
// Notification problems are logged and do not fail the run.
func (p *Pipeline) Run(ctx context.Context, id string) (*RunResult, error) {
	log := zap.L().With(zap.String("termsheet_id", id))
	log.Info("pipeline: starting run")

	ts, err := p.store.GetTermsheet(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load termsheet %s", id)
	}

	setStatus := func(status model.TermsheetStatus) {
		if statusErr := p.store.UpdateStatus(ctx, id, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.String("status", string(status)), zap.Error(statusErr))
		}
	}
	setStatus(model.StatusProcessing)

	dir := filepath.Join(p.cfg.Storage.WorkDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		setStatus(model.StatusFailed)
		return nil, eris.Wrapf(err, "pipeline: create work dir %s", dir)
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	result := &RunResult{TermsheetID: id}
	fail := func(err error) (*RunResult, error) {
		setStatus(model.StatusFailed)
		return result, eris.Wrapf(err, "pipeline: termsheet %s", id)
	}

	if err := trackStage(log, "structure", func() error {
		out, err := p.StructureTermsheet(ctx, id, dir)
		result.Structure = out
		return err
	}); err != nil {
		return fail(err)
	}

	if err := trackStage(log, "validate", func() error {
		report, err := p.Validate(ctx, id, dir)
		result.Report = report
		return err
	}); err != nil {
		return fail(err)
	}

	if err := trackStage(log, "highlight", func() error {
		res, err := p.Highlight(ctx, id, dir)
		result.Highlight = res
		return err
	}); err != nil {
		return fail(err)
	}

	setStatus(model.StatusToBeAccepted)

	_ = trackStage(log, "notify", func() error {
		n, err := p.Notify(ctx, id, ts.OrgID, dir)
		result.Notified = n
		return err
	})

	log.Info("pipeline: run complete",
		zap.Int("matches", len(result.Report.Matches)),
		zap.Int("discrepancies", len(result.Report.Discrepancies)),
		zap.Int("notified", result.Notified),
	)
	return result, nil
}

// BatchResult is one termsheet's outcome in a batch.
type BatchResult struct {
	ID     string
	Result *RunResult
	Err    error
}

// RunBatch runs termsheets concurrently, bounded by
// batch.max_concurrent_termsheets. A failed termsheet never stops the others.
func (p *Pipeline) RunBatch(ctx context.Context, ids []string) []BatchResult {
	out := make([]BatchResult, len(ids))

	var g errgroup.Group
	g.SetLimit(max(1, p.cfg.Batch.MaxConcurrentTermsheets))
	for i, id := range ids {
		g.Go(func() error {
			res, err := p.Run(ctx, id)
			out[i] = BatchResult{ID: id, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range out {
		if r.Err != nil {
			failed++
		}
	}
	zap.L().Info("pipeline: batch complete",
		zap.Int("termsheets", len(ids)),
		zap.Int("failed", failed),
	)
	return out
}

func (p *Pipeline) pool() *Pool {
	return NewPool(p.cfg.Worker.PoolSize, p.cfg.Worker.RequestDelay())
}

// trackStage times a stage, records it in metrics and logs the outcome.
func trackStage(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if err != nil {
		metrics.ObserveStage(name, "failed", elapsed)
		log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.Error(err),
		)
		return err
	}
	metrics.ObserveStage(name, "complete", elapsed)
	log.Info("pipeline: stage complete",
		zap.String("stage", name),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
	return nil
}
