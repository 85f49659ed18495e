package main

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/store"
)

// errNoReport is returned when a run has not reached the render stage.
var errNoReport = eris.New("run has no report yet")

// latestState decodes the state of the run's most recent checkpoint.
func latestState(ctx context.Context, st store.Store, runID string) (*model.State, error) {
	if _, err := st.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	cp, err := st.LatestCheckpoint(ctx, runID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, eris.Wrapf(errNoReport, "run %s has no checkpoints", runID)
	}
	var s model.State
	if err := json.Unmarshal(cp.State, &s); err != nil {
		return nil, eris.Wrapf(err, "decode checkpoint %s/%d", runID, cp.StageIndex)
	}
	return &s, nil
}

// loadReport returns the rendered report stored for a run.
func loadReport(ctx context.Context, st store.Store, runID string) (string, error) {
	s, err := latestState(ctx, st, runID)
	if err != nil {
		return "", err
	}
	if s.Report == nil {
		return "", eris.Wrapf(errNoReport, "run %s stopped after %s", runID, s.CurrentStage)
	}
	return *s.Report, nil
}
