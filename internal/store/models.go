package store

import "sort"

// StepRecord is the persisted outcome of one executed step.
type StepRecord struct {
	Step     int    `json:"step"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// History maps a step index to its record.
type History map[int]StepRecord

// Before returns the records for steps in [1, step), ordered by step index.
// Missing indices are skipped.
func (h History) Before(step int) []StepRecord {
	var out []StepRecord
	for i, rec := range h {
		if i >= 1 && i < step {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Step < out[b].Step })
	return out
}

// Window returns a copy of h restricted to [1, step).
func (h History) Window(step int) History {
	out := make(History)
	for _, rec := range h.Before(step) {
		out[rec.Step] = rec
	}
	return out
}

// Status is the lifecycle position of an analysis session.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusComplete   Status = "complete"
)

// SessionState is the persisted state machine position of a session.
type SessionState struct {
	Status Status `json:"status"`
	Step   int    `json:"step"`
}

// Store is the durable key-value record behind an analysis session.
type Store interface {
	SaveStep(sessionID string, rec StepRecord) error
	History(sessionID string) (History, error)
	SaveSnapshot(sessionID, source, data string) error
	Snapshot(sessionID, source string) (string, bool, error)
	SetState(sessionID string, state SessionState) error
	State(sessionID string) (SessionState, error)
	Reset(sessionID string) error
	Close() error
}
