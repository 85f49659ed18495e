// Package metrics exposes pipeline progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/pipeline"
)

const namespace = "wealth"

// Recorder is a pipeline.ProgressSink that records per-stage metrics.
type Recorder struct {
	stageDuration *prometheus.HistogramVec
	stages        *prometheus.CounterVec
	audits        *prometheus.CounterVec
	runs          *prometheus.CounterVec
}

var _ pipeline.ProgressSink = (*Recorder)(nil)

// NewRecorder registers the pipeline metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		// Labels: stage
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		// Labels: stage, outcome (ok, degraded)
		stages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stages_total",
			Help:      "Completed stages by outcome",
		}, []string{"stage", "outcome"}),
		// Labels: stage, level
		audits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "audit_entries_total",
			Help:      "Audit entries recorded by stages",
		}, []string{"stage", "level"}),
		// Labels: status
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Finished runs by terminal status",
		}, []string{"status"}),
	}
}

// OnStage implements pipeline.ProgressSink.
func (r *Recorder) OnStage(ev pipeline.ProgressEvent) {
	r.stageDuration.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())

	outcome := "ok"
	for _, a := range ev.Update.AuditLog {
		r.audits.WithLabelValues(ev.Stage, string(a.Level)).Inc()
		if a.Level != model.AuditInfo {
			outcome = "degraded"
		}
	}
	r.stages.WithLabelValues(ev.Stage, outcome).Inc()
}

// RunFinished counts a run that reached status.
func (r *Recorder) RunFinished(status model.RunStatus) {
	r.runs.WithLabelValues(string(status)).Inc()
}
