// Package events delivers scheduler lifecycle notifications to subscribers
// without ever blocking the emitting goroutine.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/seedline/crawld/internal/crawl"
)

// Kind denotes which lifecycle transition an Event carries.
type Kind string

// Supported event kinds.
const (
	KindJobCompleted Kind = "JOB_COMPLETED"
	KindJobPaused    Kind = "JOB_PAUSED"
	KindJobResumed   Kind = "JOB_RESUMED"
	KindJobCancelled Kind = "JOB_CANCELLED"
	KindTaskUpdated  Kind = "TASK_UPDATED"
)

// Event captures a single scheduler state transition. Job is populated for
// JOB_COMPLETED, Task for TASK_UPDATED; both are snapshots, safe to retain.
type Event struct {
	Kind  Kind
	JobID string
	TS    time.Time
	Job   *crawl.Job
	Task  *crawl.Task
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindJobPaused, KindJobResumed, KindJobCancelled:
	case KindJobCompleted:
		if e.Job == nil {
			return errors.New("job completed requires job snapshot")
		}
	case KindTaskUpdated:
		if e.Task == nil {
			return errors.New("task updated requires task snapshot")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}
