package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/metrics"
	"github.com/seedline/crawld/internal/predict"
)

// ensureLoopLocked starts the scheduling loop if it is parked.
func (s *Scheduler) ensureLoopLocked() {
	if s.loopRunning {
		return
	}
	s.loopRunning = true
	s.loopDone = make(chan struct{})
	go s.loop(s.baseCtx, s.loopDone)
}

// loop runs while any job has unresolved tasks. It dequeues the next URL,
// resolves the pending task owning it, and dispatches the pipeline under the
// global in-flight cap. An empty frontier waits the idle interval instead of
// busy-spinning.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		s.mu.Lock()
		if ctx.Err() != nil || !s.hasUnresolvedLocked() {
			s.loopRunning = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		url, ok := s.frontier.Dequeue()
		metrics.SetFrontierDepth(s.frontier.Len())
		if !ok {
			if err := idleSleep(ctx, s.cfg.IdleWait); err != nil {
				s.park()
				return
			}
			continue
		}

		ref := s.resolveDispatch(url)
		if ref == nil {
			continue
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			// Shutting down: put the claimed task back to pending.
			s.mu.Lock()
			ref.task.Status = crawl.TaskStatusPending
			s.loopRunning = false
			s.mu.Unlock()
			return
		}
		s.inflight.Add(1)
		go s.runTask(ctx, ref)
	}
}

func (s *Scheduler) park() {
	s.mu.Lock()
	s.loopRunning = false
	s.mu.Unlock()
}

// resolveDispatch claims the task owning url and decides whether it runs now.
// Tasks of paused jobs stay pending but leave the current cycle (resume
// re-enqueues them); tasks of cancelled jobs are discarded outright.
func (s *Scheduler) resolveDispatch(url string) *taskRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := s.claimLocked(url)
	if ref == nil {
		return nil
	}
	switch {
	case ref.job.status.Terminal():
		return nil
	case ref.job.status == crawl.JobStatusPaused:
		return nil
	}
	ref.task.Status = crawl.TaskStatusProcessing
	s.emitTaskLocked(ref.task)
	return ref
}

func (s *Scheduler) runTask(ctx context.Context, ref *taskRef) {
	defer s.inflight.Done()
	defer s.sem.Release(1)

	parsed, err := s.pipeline(ctx, ref)
	if err != nil {
		s.applyFailure(ref, err)
		return
	}
	s.applySuccess(ref)

	if s.predictor != nil {
		s.inflight.Add(1)
		go s.submitPrediction(ctx, *ref.task, parsed)
	}
}

// submitPrediction hands parse output to the prediction collaborator and
// waits for the correlated outcome. Failures are logged only.
func (s *Scheduler) submitPrediction(ctx context.Context, task crawl.Task, parsed crawl.ParseResult) {
	defer s.inflight.Done()

	if err := s.predictor.Submit(predict.FromParse(task, parsed)); err != nil {
		s.logger.Warn("prediction submit failed",
			zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	res, err := s.predictor.Await(ctx, task.ID)
	if err != nil {
		s.logger.Warn("prediction await failed",
			zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	if res.Err != nil {
		s.logger.Warn("prediction rejected",
			zap.String("task_id", task.ID), zap.Error(res.Err))
		return
	}
	s.logger.Debug("prediction accepted",
		zap.String("task_id", task.ID), zap.String("message_id", res.MessageID))
}

// pipeline runs fetch, parse, and store for one task. Failure at any stage
// counts identically against the task's retry budget.
func (s *Scheduler) pipeline(ctx context.Context, ref *taskRef) (crawl.ParseResult, error) {
	task := ref.task

	res, err := s.fetcher.Crawl(ctx, task.URL)
	if err != nil {
		return crawl.ParseResult{}, fmt.Errorf("fetch: %w", err)
	}

	parsed, err := s.parser.Parse(ctx, res)
	if err != nil {
		return crawl.ParseResult{}, fmt.Errorf("parse: %w", err)
	}

	digest, err := s.hasher.Hash(res.Body)
	if err != nil {
		digest = ""
	}
	rec := crawl.Record{
		TaskID:      task.ID,
		JobID:       task.JobID,
		Fetch:       res,
		URL:         res.URL,
		Status:      res.StatusCode,
		ContentHash: digest,
		Parsed:      parsed,
		Saved:       s.clock.Now(),
	}
	sres, err := s.store.Save(ctx, rec)
	if err != nil {
		return crawl.ParseResult{}, fmt.Errorf("store: %w", err)
	}
	if !sres.Success {
		return crawl.ParseResult{}, fmt.Errorf("store: %s", sres.Error)
	}
	return parsed, nil
}

// applySuccess records a completed pipeline, unless the owning job went
// terminal while the fetch was in flight; stale results are discarded.
func (s *Scheduler) applySuccess(ref *taskRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := ref.job
	if job.status.Terminal() {
		s.logger.Debug("discarding stale completion",
			zap.String("job_id", job.id), zap.String("task_id", ref.task.ID))
		return
	}
	ref.task.Status = crawl.TaskStatusCompleted
	ref.task.Error = ""
	job.complete++
	s.emitTaskLocked(ref.task)
	s.checkTerminalLocked(job)
}

// applyFailure retries the task at its original priority while budget
// remains, otherwise resolves it failed and re-runs the terminal check.
func (s *Scheduler) applyFailure(ref *taskRef, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := ref.job
	task := ref.task
	if job.status.Terminal() {
		s.logger.Debug("discarding stale failure",
			zap.String("job_id", job.id), zap.String("task_id", task.ID))
		return
	}

	task.Error = cause.Error()
	if task.RetryCount < task.MaxRetries {
		// Requeue bypasses the visited set; the dedup contract must not
		// swallow a retry.
		if err := s.frontier.Requeue(task.URL, task.Priority); err == nil {
			task.RetryCount++
			task.Status = crawl.TaskStatusPending
			ref.queued = true
			s.indexLocked(ref)
			s.emitTaskLocked(task)
			s.logger.Debug("task retry scheduled",
				zap.String("task_id", task.ID), zap.Int("retry", task.RetryCount),
				zap.String("cause", task.Error))
			return
		}
		s.logger.Warn("retry requeue rejected by frontier",
			zap.String("task_id", task.ID), zap.String("url", task.URL))
	}

	task.Status = crawl.TaskStatusFailed
	job.failed++
	s.emitTaskLocked(task)
	s.checkTerminalLocked(job)
}

func (s *Scheduler) hasUnresolvedLocked() bool {
	for _, job := range s.jobs {
		if !job.status.Terminal() && !job.resolved() {
			return true
		}
	}
	return false
}

func idleSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
