package sinks

import (
	"context"

	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/events"
	"github.com/seedline/crawld/internal/metrics"
)

// Prometheus translates task transitions into counter increments.
type Prometheus struct{}

// NewPrometheus builds a Prometheus sink.
func NewPrometheus() *Prometheus {
	return &Prometheus{}
}

// Notify implements events.Sink.
func (s *Prometheus) Notify(_ context.Context, evt events.Event) error {
	if evt.Kind != events.KindTaskUpdated || evt.Task == nil {
		return nil
	}
	switch evt.Task.Status {
	case crawl.TaskStatusCompleted:
		metrics.ObserveTaskOutcome("completed")
	case crawl.TaskStatusFailed:
		metrics.ObserveTaskOutcome("failed")
	case crawl.TaskStatusPending:
		if evt.Task.RetryCount > 0 {
			metrics.ObserveTaskOutcome("retried")
		}
	}
	return nil
}

// Close implements events.Sink.
func (s *Prometheus) Close(context.Context) error { return nil }
