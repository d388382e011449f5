package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/highlight"
	"github.com/sells-group/termsheet-cli/internal/metrics"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/parse"
	"github.com/sells-group/termsheet-cli/internal/prompt"
	"github.com/sells-group/termsheet-cli/pkg/llm"
)

// Detect asks the gateway for discrepancies between every chunk and the
// reference data. Results come back in chunk order; a chunk whose call or
// parse failed contributes no entries. ErrAllChunksFailed is returned only
// when every call failed.
func Detect(ctx context.Context, client llm.Client, pool *Pool, chunks []model.Chunk, reference map[string]any) ([]highlight.ChunkDiscrepancies, error) {
	type detected struct {
		entries []model.DiscrepancyEntry
		err     error
	}

	found := Map(ctx, pool, len(chunks), func(ctx context.Context, i int) detected {
		raw, err := client.Call(ctx, prompt.Discrepancy(chunks[i].Text, reference))
		if err != nil {
			metrics.Chunks.WithLabelValues("llm_failed").Inc()
			zap.L().Warn("discrepancy call failed", zap.Int("chunk", chunks[i].Index), zap.Error(err))
			return detected{err: err}
		}
		entries, failure := parse.ExtractDiscrepancies(raw)
		if failure != nil {
			metrics.Chunks.WithLabelValues("parse_failed").Inc()
			zap.L().Info("discrepancy parse failed",
				zap.Int("chunk", chunks[i].Index),
				zap.String("kind", failure.Kind.String()),
			)
			return detected{}
		}
		metrics.Chunks.WithLabelValues("parsed").Inc()
		return detected{entries: entries}
	})

	out := make([]highlight.ChunkDiscrepancies, len(chunks))
	var failed int
	var last error
	for i, d := range found {
		out[i] = highlight.ChunkDiscrepancies{Chunk: chunks[i], Entries: d.entries}
		if d.err != nil {
			failed++
			last = d.err
		}
	}
	if len(chunks) > 0 && failed == len(chunks) {
		return out, eris.Wrapf(ErrAllChunksFailed, "%d chunks, last: %v", failed, last)
	}
	return out, nil
}
