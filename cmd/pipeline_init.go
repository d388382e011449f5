package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/extract"
	"github.com/sells-group/termsheet-cli/internal/highlight"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/notify"
	"github.com/sells-group/termsheet-cli/internal/objstore"
	"github.com/sells-group/termsheet-cli/internal/pipeline"
	"github.com/sells-group/termsheet-cli/internal/resilience"
	"github.com/sells-group/termsheet-cli/internal/store"
	"github.com/sells-group/termsheet-cli/internal/tabular"
	"github.com/sells-group/termsheet-cli/pkg/llm"
)

// pipelineEnv holds the initialized collaborators and the pipeline needed by
// the run and serve commands. Store is nil for file-only commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Decoder  *extract.Decoder
	Schema   model.FieldSchema
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates configuration for mode and builds the pipeline.
// Modes that need the database get a migrated store, object storage and the
// mailer; file-only modes get neither. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, renderer pipeline.Renderer) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	client, err := llm.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	schema, err := tabular.LoadSchema(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}
	decoder := extract.NewDecoder(cfg.OCR)
	if renderer == nil {
		renderer = highlight.NewPDFRenderer()
	}
	env := &pipelineEnv{Decoder: decoder, Schema: schema}

	var (
		objects objstore.Store
		mailer  notify.Mailer
	)
	if mode == "run" || mode == "serve" {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st

		objects, err = objstore.New(cfg.Storage, resilience.FromRetryConfig(cfg.Retry))
		if err != nil {
			env.Close()
			return nil, err
		}
		if err := os.MkdirAll(cfg.Storage.WorkDir, 0o755); err != nil {
			env.Close()
			return nil, eris.Wrap(err, "create work dir")
		}

		if cfg.Email.Enabled {
			mailer = notify.NewSMTPMailer(cfg.Email)
		} else {
			zap.L().Info("email disabled, results will not be sent")
		}
	}

	env.Pipeline = pipeline.New(cfg, env.Store, objects, client, decoder, renderer, mailer, schema)
	return env, nil
}

// initStore opens and migrates the configured database.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
