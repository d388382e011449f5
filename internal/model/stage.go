package model

// Stage is a document's position in the structuring state machine.
type Stage int

const (
	StagePending Stage = iota
	StageChunked
	StagePrompted
	StageLLMCalled
	StageParsedOrFailed
	StageMerged
	StagePersisted
	StageFailed
)

var stageNames = [...]string{
	StagePending:        "pending",
	StageChunked:        "chunked",
	StagePrompted:       "prompted",
	StageLLMCalled:      "llm_called",
	StageParsedOrFailed: "parsed_or_failed",
	StageMerged:         "merged",
	StagePersisted:      "persisted",
	StageFailed:         "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether no further transitions are allowed.
func (s Stage) Terminal() bool {
	return s == StagePersisted || s == StageFailed
}

// CanTransition reports whether moving from one stage to another is legal.
// Stages advance one step at a time; any non-terminal stage may fail.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	return to == from+1
}
