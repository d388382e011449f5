package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/notify"
	"github.com/sells-group/termsheet-cli/internal/store"
)

// fakeStore is an in-memory store.Store.
type fakeStore struct {
	mu         sync.Mutex
	termsheets map[string]*model.Termsheet
	files      map[string]model.FileRef
	members    map[string][]model.Recipient
	statuses   map[string][]model.TermsheetStatus
	nextID     int
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		termsheets: make(map[string]*model.Termsheet),
		files:      make(map[string]model.FileRef),
		members:    make(map[string][]model.Recipient),
		statuses:   make(map[string][]model.TermsheetStatus),
	}
}

func (s *fakeStore) add(id, orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.termsheets[id] = &model.Termsheet{ID: id, OrgID: orgID, Status: model.StatusPending, Files: map[model.FileRole]string{}}
}

func (s *fakeStore) CreateTermsheet(_ context.Context, orgID, title string) (*model.Termsheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ts := &model.Termsheet{ID: fmt.Sprintf("ts-%d", s.nextID), OrgID: orgID, Title: title, Status: model.StatusPending, Files: map[model.FileRole]string{}}
	s.termsheets[ts.ID] = ts
	return ts, nil
}

func (s *fakeStore) GetTermsheet(_ context.Context, id string) (*model.Termsheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.termsheets[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "termsheet %s", id)
	}
	cp := *ts
	return &cp, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id string, status model.TermsheetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.termsheets[id]
	if !ok {
		return eris.Wrapf(store.ErrNotFound, "termsheet %s", id)
	}
	ts.Status = status
	s.statuses[id] = append(s.statuses[id], status)
	return nil
}

func (s *fakeStore) GetFile(_ context.Context, id string, role model.FileRole) (*model.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.termsheets[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "termsheet %s", id)
	}
	fileID, ok := ts.Files[role]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "%s of %s", role, id)
	}
	ref := s.files[fileID]
	return &ref, nil
}

func (s *fakeStore) AttachFile(_ context.Context, id string, role model.FileRole, url string, ft model.FileType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.termsheets[id]
	if !ok {
		return "", eris.Wrapf(store.ErrNotFound, "termsheet %s", id)
	}
	s.nextID++
	fileID := fmt.Sprintf("file-%d", s.nextID)
	s.files[fileID] = model.FileRef{ID: fileID, URL: url, Type: ft, CreatedAt: time.Now()}
	ts.Files[role] = fileID
	return fileID, nil
}

func (s *fakeStore) ListRecipients(_ context.Context, orgID string) ([]model.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[orgID], nil
}

func (s *fakeStore) Migrate(context.Context) error { return nil }
func (s *fakeStore) Close() error                  { return nil }

func (s *fakeStore) statusHistory(id string) []model.TermsheetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TermsheetStatus(nil), s.statuses[id]...)
}

func (s *fakeStore) hasFile(id string, role model.FileRole) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.termsheets[id].Files[role]
	return ok
}

// llmFunc adapts a function to llm.Client.
type llmFunc func(ctx context.Context, prompt string) (string, error)

func (f llmFunc) Call(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

// scriptedLLM answers each prompt kind with a canned response.
type scriptedLLM struct {
	extraction  string
	comparison  string
	discrepancy string
	calls       atomic.Int32
}

func (s *scriptedLLM) Call(_ context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	switch {
	case strings.Contains(prompt, "=== FILE 1 ==="):
		return s.comparison, nil
	case strings.Contains(prompt, "text_to_highlight"):
		return s.discrepancy, nil
	}
	return s.extraction, nil
}

type fakeDecoder struct {
	spans []model.TextSpan
	err   error
}

func (d fakeDecoder) Spans(context.Context, string, model.FileType) ([]model.TextSpan, error) {
	return d.spans, d.err
}

// copyRenderer copies the source and keeps the last rendered document.
type copyRenderer struct {
	mu  sync.Mutex
	doc *model.AnnotatedDocument
}

func (r *copyRenderer) Render(doc *model.AnnotatedDocument, src, dst string) error {
	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}
