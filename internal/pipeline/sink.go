package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/model"
)

// ProgressEvent is emitted after each stage with the exact delta it produced.
type ProgressEvent struct {
	RunID    string        `json:"run_id"`
	Index    int           `json:"index"`
	Stage    string        `json:"stage"`
	Update   model.Update  `json:"update"`
	Duration time.Duration `json:"duration_ns"`
}

// ProgressSink observes stage transitions. It has no way to influence the run.
type ProgressSink interface {
	OnStage(ev ProgressEvent)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(ProgressEvent)

// OnStage implements ProgressSink.
func (f SinkFunc) OnStage(ev ProgressEvent) { f(ev) }

// LogSink logs each stage transition.
type LogSink struct{}

// OnStage implements ProgressSink.
func (LogSink) OnStage(ev ProgressEvent) {
	log := zap.L().With(
		zap.String("run_id", ev.RunID),
		zap.String("stage", ev.Stage),
	)
	for _, a := range ev.Update.AuditLog {
		switch a.Level {
		case model.AuditError:
			log.Error("pipeline: audit", zap.String("message", a.Message))
		case model.AuditWarn:
			log.Warn("pipeline: audit", zap.String("message", a.Message))
		default:
			log.Debug("pipeline: audit", zap.String("message", a.Message))
		}
	}
}

// ChannelSink forwards events to a channel without blocking the pipeline.
// Events are dropped when the channel is full.
type ChannelSink struct {
	C chan ProgressEvent
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan ProgressEvent, buffer)}
}

// OnStage implements ProgressSink.
func (s *ChannelSink) OnStage(ev ProgressEvent) {
	select {
	case s.C <- ev:
	default:
		zap.L().Warn("pipeline: progress event dropped",
			zap.String("run_id", ev.RunID),
			zap.String("stage", ev.Stage),
		)
	}
}
