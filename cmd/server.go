package main

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/merge"
	"github.com/sells-group/termsheet-cli/internal/metrics"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/pipeline"
	"github.com/sells-group/termsheet-cli/internal/tabular"
)

const maxUploadBytes = 32 << 20

// server exposes the pipeline over HTTP.
type server struct {
	// ctx outlives requests; background runs stop when it is canceled.
	ctx         context.Context
	pipeline    *pipeline.Pipeline
	decoder     pipeline.SpanSource
	schema      model.FieldSchema
	corsOrigins []string

	// run defaults to pipeline.Run; tests replace it.
	run func(ctx context.Context, id string) (*pipeline.RunResult, error)

	wg sync.WaitGroup
}

func newServer(ctx context.Context, p *pipeline.Pipeline, decoder pipeline.SpanSource, schema model.FieldSchema, corsOrigins []string) *server {
	s := &server{
		ctx:         ctx,
		pipeline:    p,
		decoder:     decoder,
		schema:      schema,
		corsOrigins: corsOrigins,
	}
	if p != nil {
		s.run = p.Run
	}
	return s
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/termsheets/{id}/run", s.handleRun)
		r.Post("/structure", s.handleStructure)
	})
	return r
}

// handleRun starts a termsheet run in the background and answers 202.
func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "termsheet id is required")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.run(s.ctx, id)
		if err != nil {
			zap.L().Error("triggered run failed", zap.String("termsheet_id", id), zap.Error(err))
			return
		}
		zap.L().Info("triggered run complete",
			zap.String("termsheet_id", id),
			zap.Int("discrepancies", len(result.Report.Discrepancies)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":       "accepted",
		"termsheet_id": id,
	})
}

type structureResponse struct {
	Record *model.StructuredRecord `json:"record"`
	Stats  merge.Stats             `json:"stats"`
	Stage  string                  `json:"stage"`
}

// handleStructure structures an uploaded document synchronously. The form
// carries "document" and an optional "mapsheet" whose header is the schema.
func (s *server) handleStructure(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	dir, err := os.MkdirTemp("", "termsheet-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot stage upload")
		return
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	docPath, err := saveUpload(r, "document", dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schema := s.schema
	if mapPath, err := saveUpload(r, "mapsheet", dir); err == nil {
		if schema, err = tabular.ReadHeader(mapPath); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	spans, err := s.decoder.Spans(r.Context(), docPath, model.DetectFileType(docPath))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out, err := s.pipeline.Structure(r.Context(), filepath.Base(docPath), spans, schema)
	if err != nil {
		zap.L().Warn("structure request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, structureResponse{Record: out.Record, Stats: out.Stats, Stage: out.Stage.String()})
}

// wait blocks until background runs finish.
func (s *server) wait() { s.wg.Wait() }

func saveUpload(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", eris.Wrapf(err, "missing %s file", field)
	}
	defer file.Close() //nolint:errcheck
	return copyUpload(file, header, dir)
}

func copyUpload(file multipart.File, header *multipart.FileHeader, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(header.Filename))
	out, err := os.Create(dst)
	if err != nil {
		return "", eris.Wrap(err, "stage upload")
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close() //nolint:errcheck
		return "", eris.Wrap(err, "stage upload")
	}
	return dst, eris.Wrap(out.Close(), "stage upload")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
