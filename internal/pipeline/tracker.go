package pipeline

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// Transition is one recorded stage change.
type Transition struct {
	From model.Stage
	To   model.Stage
	At   time.Time
}

// Tracker follows one document through the stage machine.
type Tracker struct {
	id  string
	log *zap.Logger

	mu      sync.Mutex
	stage   model.Stage
	history []Transition
	err     error
}

// NewTracker starts a document in StagePending.
func NewTracker(id string) *Tracker {
	return &Tracker{
		id:    id,
		log:   zap.L().With(zap.String("document", id)),
		stage: model.StagePending,
	}
}

// Advance moves to the next stage. Skipping a stage or leaving a terminal
// stage is an error.
func (t *Tracker) Advance(to model.Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !model.CanTransition(t.stage, to) {
		return eris.Errorf("pipeline: %s: illegal transition %s -> %s", t.id, t.stage, to)
	}
	t.record(to)
	t.log.Debug("stage", zap.String("stage", to.String()))
	return nil
}

// Fail moves to StageFailed and returns cause for convenience. Failing an
// already terminal document keeps its stage.
func (t *Tracker) Fail(cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage.Terminal() {
		return cause
	}
	from := t.stage
	t.record(model.StageFailed)
	t.err = cause
	t.log.Warn("stage failed", zap.String("from", from.String()), zap.Error(cause))
	return cause
}

func (t *Tracker) record(to model.Stage) {
	t.history = append(t.history, Transition{From: t.stage, To: to, At: time.Now()})
	t.stage = to
}

// Stage returns the current stage.
func (t *Tracker) Stage() model.Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Err returns the error that failed the document, if any.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// History returns a copy of the recorded transitions.
func (t *Tracker) History() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.history))
	copy(out, t.history)
	return out
}
