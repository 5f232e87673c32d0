// Package sinks contains Sink implementations for the event hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/events"
)

// Log writes every lifecycle event through a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog builds a Log sink.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Notify implements events.Sink.
func (s *Log) Notify(_ context.Context, evt events.Event) error {
	fields := []zap.Field{
		zap.String("kind", string(evt.Kind)),
		zap.String("job_id", evt.JobID),
		zap.Time("ts", evt.TS),
	}
	if evt.Task != nil {
		fields = append(fields,
			zap.String("task_id", evt.Task.ID),
			zap.String("task_status", string(evt.Task.Status)),
			zap.Int("retry_count", evt.Task.RetryCount),
		)
	}
	if evt.Job != nil {
		fields = append(fields,
			zap.String("job_status", string(evt.Job.Status)),
			zap.Int("completed", evt.Job.CompletedCount),
			zap.Int("failed", evt.Job.FailedCount),
		)
	}
	s.logger.Info("lifecycle event", fields...)
	return nil
}

// Close implements events.Sink.
func (s *Log) Close(context.Context) error { return nil }
