package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/pipeline"
)

func TestRecorder_OnStage(t *testing.T) {
	t.Parallel()
	r := NewRecorder(prometheus.NewRegistry())

	ok := model.Update{Stage: pipeline.StageIncome}
	ok.Audit(model.AuditInfo, "1 income result(s)")
	r.OnStage(pipeline.ProgressEvent{Stage: pipeline.StageIncome, Update: ok, Duration: 200 * time.Millisecond})

	bad := model.Update{Stage: pipeline.StageHolding}
	bad.Audit(model.AuditWarn, "Credit card holding data missing")
	r.OnStage(pipeline.ProgressEvent{Stage: pipeline.StageHolding, Update: bad, Duration: time.Millisecond})

	assert.InDelta(t, 1, testutil.ToFloat64(r.stages.WithLabelValues(pipeline.StageIncome, "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.stages.WithLabelValues(pipeline.StageHolding, "degraded")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(r.stages.WithLabelValues(pipeline.StageHolding, "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.audits.WithLabelValues(pipeline.StageHolding, string(model.AuditWarn))), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(r.stageDuration))
}

func TestRecorder_RunFinished(t *testing.T) {
	t.Parallel()
	r := NewRecorder(prometheus.NewRegistry())
	r.RunFinished(model.RunStatusComplete)
	r.RunFinished(model.RunStatusComplete)
	r.RunFinished(model.RunStatusAborted)

	assert.InDelta(t, 2, testutil.ToFloat64(r.runs.WithLabelValues("complete")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("aborted")), 0)
}
