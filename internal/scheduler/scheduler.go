// Package scheduler owns jobs and tasks and drives the crawl pipeline:
// frontier dequeue, politeness-gated fetch, parse, store, and the retry and
// lifecycle bookkeeping around them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/events"
	"github.com/seedline/crawld/internal/frontier"
	"github.com/seedline/crawld/internal/hash/sha256"
	"github.com/seedline/crawld/internal/predict"
)

// Predictor forwards parse output to the upstream prediction service and
// reports the correlated outcome. Prediction is advisory; its failures never
// count against a task.
type Predictor interface {
	Submit(req predict.Request) error
	Await(ctx context.Context, taskID string) (predict.Result, error)
}

// ErrJobNotFound is returned for operations against unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Config controls scheduler behavior.
type Config struct {
	MaxConcurrent     int
	DefaultMaxRetries int
	IdleWait          time.Duration
}

// jobState is the mutable record behind a Job snapshot. All fields are
// guarded by Scheduler.mu.
type jobState struct {
	id       string
	tasks    []*crawl.Task
	complete int
	failed   int
	status   crawl.JobStatus
	started  time.Time
	finished *time.Time
}

func (j *jobState) resolved() bool {
	return j.complete+j.failed >= len(j.tasks)
}

// taskRef pairs a task with its owning job for dispatch and completion.
type taskRef struct {
	job  *jobState
	task *crawl.Task
	// queued tracks whether the task's URL currently sits in the frontier,
	// so resume never double-enqueues.
	queued bool
}

// Scheduler ties the frontier, fetcher, and external collaborators together
// under one lifecycle. All shared tables are owned by the instance; multiple
// schedulers coexist in a process without interference.
type Scheduler struct {
	cfg      Config
	frontier *frontier.URLFrontier
	fetcher  crawl.Fetcher
	parser   crawl.Parser
	store    crawl.Store
	emitter  events.Emitter
	ids      crawl.IDGenerator
	clock    crawl.Clock
	hasher   crawl.Hasher
	logger   *zap.Logger

	predictor Predictor

	sem *semaphore.Weighted

	mu          sync.Mutex
	jobs        map[string]*jobState
	pending     map[string][]*taskRef // dedup key -> refs in enqueue order
	loopRunning bool

	baseCtx  context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// New builds a Scheduler. The scheduling loop starts lazily on the first
// StartJob and parks again once every task is resolved.
func New(
	cfg Config,
	front *frontier.URLFrontier,
	fetch crawl.Fetcher,
	parser crawl.Parser,
	store crawl.Store,
	emitter events.Emitter,
	ids crawl.IDGenerator,
	clock crawl.Clock,
	logger *zap.Logger,
) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = 3
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 50 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:      cfg,
		frontier: front,
		fetcher:  fetch,
		parser:   parser,
		store:    store,
		emitter:  emitter,
		ids:      ids,
		clock:    clock,
		hasher:   sha256.New(),
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		jobs:     make(map[string]*jobState),
		pending:  make(map[string][]*taskRef),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// SetPredictor attaches an optional prediction collaborator. Call before the
// first StartJob.
func (s *Scheduler) SetPredictor(p Predictor) {
	s.predictor = p
}

// StartJob creates a job with one task per URL, enqueues every task's URL at
// the given priority, and returns the job ID without waiting for completion.
// A submission the frontier drops (duplicate of a visited URL, or queue full)
// fails its task immediately rather than leaving the job unresolvable.
func (s *Scheduler) StartJob(urls []string, priority int) (string, error) {
	if len(urls) == 0 {
		return "", errors.New("start job: no urls")
	}
	jobID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}

	job := &jobState{
		id:      jobID,
		status:  crawl.JobStatusRunning,
		started: s.clock.Now(),
	}
	for _, url := range urls {
		taskID, err := s.ids.NewID()
		if err != nil {
			return "", fmt.Errorf("generate task id: %w", err)
		}
		job.tasks = append(job.tasks, &crawl.Task{
			ID:         taskID,
			JobID:      jobID,
			URL:        url,
			Priority:   priority,
			MaxRetries: s.cfg.DefaultMaxRetries,
			Status:     crawl.TaskStatusPending,
		})
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	for _, task := range job.tasks {
		ref := &taskRef{job: job, task: task}
		if s.frontier.Offer(task.URL, priority) {
			ref.queued = true
			s.indexLocked(ref)
			continue
		}
		// Dropped by the frontier: resolve now so the job can terminate.
		task.Status = crawl.TaskStatusFailed
		task.Error = "enqueue dropped: url already visited or frontier full"
		job.failed++
		s.emitTaskLocked(task)
	}
	s.checkTerminalLocked(job)
	s.ensureLoopLocked()
	s.mu.Unlock()

	s.logger.Info("job started",
		zap.String("job_id", jobID), zap.Int("tasks", len(urls)), zap.Int("priority", priority))
	return jobID, nil
}

// PauseJob stops new dispatch for the job; tasks already mid-flight still
// complete.
func (s *Scheduler) PauseJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.status != crawl.JobStatusRunning {
		return fmt.Errorf("pause job %s: status is %s", jobID, job.status)
	}
	job.status = crawl.JobStatusPaused
	s.emitter.Emit(events.Event{Kind: events.KindJobPaused, JobID: jobID, TS: s.clock.Now()})
	return nil
}

// ResumeJob returns a paused job to running and re-enqueues its pending tasks
// that are no longer sitting in the frontier, so tasks dropped from a
// scheduling cycle while paused are picked up again.
func (s *Scheduler) ResumeJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.status != crawl.JobStatusPaused {
		return fmt.Errorf("resume job %s: status is %s", jobID, job.status)
	}
	job.status = crawl.JobStatusRunning
	s.emitter.Emit(events.Event{Kind: events.KindJobResumed, JobID: jobID, TS: s.clock.Now()})
	s.requeuePendingLocked(job)
	s.ensureLoopLocked()
	return nil
}

// CancelJob forces the job terminal immediately. In-flight fetches are not
// interrupted; their eventual results are discarded instead of applied.
func (s *Scheduler) CancelJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.status.Terminal() {
		return fmt.Errorf("cancel job %s: already %s", jobID, job.status)
	}
	job.status = crawl.JobStatusFailed
	now := s.clock.Now()
	job.finished = &now
	s.emitter.Emit(events.Event{Kind: events.KindJobCancelled, JobID: jobID, TS: now})
	return nil
}

// GetJobStatus returns a read-only snapshot of the job.
func (s *Scheduler) GetJobStatus(jobID string) (crawl.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawl.Job{}, ErrJobNotFound
	}
	return snapshotLocked(job), nil
}

// Close stops the loop, waits for in-flight pipelines to finish, and returns
// once everything is parked or ctx expires.
func (s *Scheduler) Close(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		loopDone := s.loopDone
		s.mu.Unlock()
		if loopDone != nil {
			<-loopDone
		}
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler close wait: %w", ctx.Err())
	}
}

// indexLocked registers a queued task under its URL's dedup key.
func (s *Scheduler) indexLocked(ref *taskRef) {
	key := crawl.DedupKey(ref.task.URL)
	s.pending[key] = append(s.pending[key], ref)
}

// claimLocked pops the oldest pending task owning the dequeued URL.
func (s *Scheduler) claimLocked(url string) *taskRef {
	key := crawl.DedupKey(url)
	refs := s.pending[key]
	if len(refs) == 0 {
		return nil
	}
	ref := refs[0]
	if len(refs) == 1 {
		delete(s.pending, key)
	} else {
		s.pending[key] = refs[1:]
	}
	ref.queued = false
	return ref
}

// requeuePendingLocked puts a resumed job's parked pending tasks back into
// the frontier, bypassing the visited set.
func (s *Scheduler) requeuePendingLocked(job *jobState) {
	for _, task := range job.tasks {
		if task.Status != crawl.TaskStatusPending {
			continue
		}
		ref := s.findUnqueuedLocked(job, task)
		if ref == nil {
			continue
		}
		if err := s.frontier.Requeue(task.URL, task.Priority); err != nil {
			s.logger.Warn("resume requeue failed",
				zap.String("job_id", job.id), zap.String("url", task.URL), zap.Error(err))
			continue
		}
		ref.queued = true
		s.indexLocked(ref)
	}
}

// findUnqueuedLocked returns a fresh ref for a pending task that is not in
// the frontier, or nil when the task is already queued.
func (s *Scheduler) findUnqueuedLocked(job *jobState, task *crawl.Task) *taskRef {
	key := crawl.DedupKey(task.URL)
	for _, ref := range s.pending[key] {
		if ref.task == task {
			return nil
		}
	}
	return &taskRef{job: job, task: task}
}

func (s *Scheduler) emitTaskLocked(task *crawl.Task) {
	snap := *task
	s.emitter.Emit(events.Event{
		Kind:  events.KindTaskUpdated,
		JobID: task.JobID,
		TS:    s.clock.Now(),
		Task:  &snap,
	})
}

// checkTerminalLocked applies the derived-status rule once every task has
// resolved: failed if any task failed, completed otherwise.
func (s *Scheduler) checkTerminalLocked(job *jobState) {
	if job.status.Terminal() || !job.resolved() {
		return
	}
	if job.failed > 0 {
		job.status = crawl.JobStatusFailed
	} else {
		job.status = crawl.JobStatusCompleted
	}
	now := s.clock.Now()
	job.finished = &now
	snap := snapshotLocked(job)
	s.emitter.Emit(events.Event{
		Kind:  events.KindJobCompleted,
		JobID: job.id,
		TS:    now,
		Job:   &snap,
	})
	s.logger.Info("job finished",
		zap.String("job_id", job.id), zap.String("status", string(job.status)),
		zap.Int("completed", job.complete), zap.Int("failed", job.failed))
}

func snapshotLocked(job *jobState) crawl.Job {
	tasks := make([]crawl.Task, len(job.tasks))
	for i, t := range job.tasks {
		tasks[i] = *t
	}
	return crawl.Job{
		ID:             job.id,
		Tasks:          tasks,
		CompletedCount: job.complete,
		FailedCount:    job.failed,
		Status:         job.status,
		Started:        job.started,
		Finished:       job.finished,
	}
}
