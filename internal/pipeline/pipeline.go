package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/store"
)

// Pipeline runs the stage chain in fixed order over one owned State.
type Pipeline struct {
	stages []Stage
	store  store.Store
	sinks  []ProgressSink
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore enables run records and per-stage checkpoints.
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithSinks registers progress sinks, called in order after every stage.
func WithSinks(sinks ...ProgressSink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sinks...) }
}

// New creates a Pipeline with the standard stage chain.
func New(cfg Config, deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{stages: NewStages(cfg, deps)}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// RunRequest starts a run. RunID is generated when empty; TargetIDs, when
// set, bypass identifier resolution.
type RunRequest struct {
	RunID     string
	Request   string
	TargetIDs []model.CustomerID
}

// Result is the outcome of a run.
type Result struct {
	RunID  string
	Status model.RunStatus
	State  *model.State
	// Failed lists stages that returned an error or panicked.
	Failed []string
}

// Report returns the rendered report, or "" if the run stopped before render.
func (r *Result) Report() string {
	if r == nil || r.State == nil || r.State.Report == nil {
		return ""
	}
	return *r.State.Report
}

// Run executes every stage. The only error conditions are a failure to
// create the run record and caller cancellation, which returns the partial
// state together with ErrPipelineAbort.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*Result, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	if p.store != nil {
		if _, err := p.store.CreateRun(ctx, model.Run{
			ID:        runID,
			Request:   req.Request,
			TargetIDs: req.TargetIDs,
		}); err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
	}

	return p.execute(ctx, runID, model.NewState(req.Request, req.TargetIDs), 0)
}

// Resume continues a run from the stage after its latest checkpoint.
func (p *Pipeline) Resume(ctx context.Context, runID string) (*Result, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}

	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resume")
	}

	cp, err := p.store.LatestCheckpoint(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resume")
	}

	if cp == nil {
		var targets []model.CustomerID
		if len(run.TargetIDs) > 0 {
			targets = run.TargetIDs
		}
		return p.execute(ctx, runID, model.NewState(run.Request, targets), 0)
	}

	var st model.State
	if err := json.Unmarshal(cp.State, &st); err != nil {
		return nil, eris.Wrapf(err, "pipeline: decode checkpoint %s/%d", runID, cp.StageIndex)
	}
	zap.L().Info("pipeline: resuming",
		zap.String("run_id", runID),
		zap.String("after_stage", cp.Stage),
		zap.Int("stage_index", cp.StageIndex),
	)
	return p.execute(ctx, runID, &st, cp.StageIndex+1)
}

func (p *Pipeline) execute(ctx context.Context, runID string, st *model.State, from int) (*Result, error) {
	log := zap.L().With(zap.String("run_id", runID))
	res := &Result{RunID: runID, State: st}

	p.setStatus(ctx, runID, model.RunStatusRunning, "")
	log.Info("pipeline: starting", zap.Int("from_stage", from))

	for i := from; i < len(p.stages); i++ {
		stage := p.stages[i]

		if err := ctx.Err(); err != nil {
			res.Status = model.RunStatusAborted
			p.setStatus(ctx, runID, res.Status, err.Error())
			log.Warn("pipeline: aborted", zap.String("next_stage", stage.Name()), zap.Error(err))
			return res, eris.Wrapf(ErrPipelineAbort, "before stage %s: %v", stage.Name(), err)
		}

		start := time.Now()
		u, err := runStage(ctx, stage, st.Clone())
		u.Stage = stage.Name()
		if err != nil {
			res.Failed = append(res.Failed, stage.Name())
			u.Audit(model.AuditError, err.Error())
			log.Error("pipeline: stage failed", zap.String("stage", stage.Name()), zap.Error(err))
		}

		if applyErr := st.Apply(u); applyErr != nil {
			res.Failed = append(res.Failed, stage.Name())
			u = model.Update{Stage: stage.Name()}
			u.Audit(model.AuditError, fmt.Sprintf("Stage output rejected: %v", applyErr))
			_ = st.Apply(u)
			log.Error("pipeline: stage output rejected", zap.String("stage", stage.Name()), zap.Error(applyErr))
		}
		duration := time.Since(start)

		log.Info("pipeline: stage complete",
			zap.String("stage", stage.Name()),
			zap.Int64("duration_ms", duration.Milliseconds()),
		)

		p.emit(ProgressEvent{RunID: runID, Index: i, Stage: stage.Name(), Update: u, Duration: duration})
		p.checkpoint(ctx, runID, i, stage.Name(), st)
		if stage.Name() == StageFilter && p.store != nil {
			if err := p.store.SetRunTargets(context.WithoutCancel(ctx), runID, st.TargetIDs); err != nil {
				log.Warn("pipeline: failed to record targets", zap.Error(err))
			}
		}
	}

	res.Status = model.RunStatusComplete
	errMsg := ""
	if len(res.Failed) > 0 {
		res.Status = model.RunStatusFailed
		errMsg = "stages failed: " + strings.Join(res.Failed, ", ")
	}
	p.setStatus(ctx, runID, res.Status, errMsg)
	log.Info("pipeline: finished", zap.String("status", string(res.Status)))
	return res, nil
}

// runStage runs one stage, converting a panic into ErrStageFailed.
func runStage(ctx context.Context, s Stage, st *model.State) (u model.Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			u = model.Update{Stage: s.Name()}
			err = eris.Wrapf(ErrStageFailed, "%s panicked: %v", s.Name(), r)
		}
	}()

	u, err = s.Run(ctx, st)
	if err != nil {
		err = eris.Wrapf(ErrStageFailed, "%s: %v", s.Name(), err)
	}
	return u, err
}

func (p *Pipeline) emit(ev ProgressEvent) {
	for _, sink := range p.sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("pipeline: progress sink panicked", zap.String("stage", ev.Stage), zap.Any("panic", r))
				}
			}()
			sink.OnStage(ev)
		}()
	}
}

// Store writes use a context detached from cancellation so an aborted run
// still records its status.
func (p *Pipeline) setStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) {
	if p.store == nil {
		return
	}
	if err := p.store.UpdateRunStatus(context.WithoutCancel(ctx), runID, status, errMsg); err != nil {
		zap.L().Warn("pipeline: failed to update status", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Pipeline) checkpoint(ctx context.Context, runID string, index int, stage string, st *model.State) {
	if p.store == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		zap.L().Warn("pipeline: encode checkpoint", zap.String("run_id", runID), zap.Error(err))
		return
	}
	if err := p.store.AppendCheckpoint(context.WithoutCancel(ctx), model.Checkpoint{
		RunID:      runID,
		StageIndex: index,
		Stage:      stage,
		State:      data,
	}); err != nil {
		zap.L().Warn("pipeline: checkpoint failed",
			zap.String("run_id", runID),
			zap.String("stage", stage),
			zap.Error(err),
		)
	}
}
