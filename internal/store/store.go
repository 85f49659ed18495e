// Package store persists pipeline runs and their append-only stage
// checkpoints.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wealth-cli/internal/model"
)

var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrCheckpointExists is returned when a checkpoint for the same run and
	// stage index was already written.
	ErrCheckpointExists = eris.New("store: checkpoint already exists")
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for pipeline runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	SetRunTargets(ctx context.Context, runID string, ids []model.CustomerID) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Checkpoints are insert-only.
	AppendCheckpoint(ctx context.Context, cp model.Checkpoint) error
	LatestCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error)
	ListCheckpoints(ctx context.Context, runID string) ([]model.Checkpoint, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
