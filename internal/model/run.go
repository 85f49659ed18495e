package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusAborted  RunStatus = "aborted"
	RunStatusFailed   RunStatus = "failed"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusComplete, RunStatusAborted, RunStatusFailed:
		return true
	}
	return false
}

// Run represents a single pipeline run.
type Run struct {
	ID        string       `json:"id"`
	Request   string       `json:"request,omitempty"`
	Status    RunStatus    `json:"status"`
	TargetIDs []CustomerID `json:"target_ids,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Checkpoint is a full state snapshot taken after a stage completed.
// Checkpoints are append-only: (RunID, StageIndex) is written at most once.
type Checkpoint struct {
	RunID      string    `json:"run_id"`
	StageIndex int       `json:"stage_index"`
	Stage      string    `json:"stage"`
	State      []byte    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
}
