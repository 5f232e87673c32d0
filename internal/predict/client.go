// Package predict submits crawl summaries to an upstream prediction service
// and correlates its answers by task ID. Delivery runs through a Publisher so
// the transport can be Cloud Pub/Sub in production and in-memory in tests.
package predict

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
)

// Request is the feature payload sent upstream for one task.
type Request struct {
	TaskID string `json:"task_id"`
	JobID  string `json:"job_id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

// Result reports the outcome of one submission.
type Result struct {
	TaskID    string
	MessageID string
	Err       error
}

// Config tunes the client.
type Config struct {
	Topic     string
	QueueSize int
	Timeout   time.Duration
}

// Client is an asynchronous prediction submitter. Submit enqueues without
// blocking on the transport; Await collects the correlated outcome.
type Client struct {
	cfg    Config
	pub    crawl.Publisher
	logger *zap.Logger

	requests chan Request

	mu      sync.Mutex
	waiters map[string]chan Result

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Client and starts its delivery goroutine.
func New(cfg Config, pub crawl.Publisher, logger *zap.Logger) (*Client, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Topic == "" {
		cfg.Topic = "predictions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:      cfg,
		pub:      pub,
		logger:   logger,
		requests: make(chan Request, cfg.QueueSize),
		waiters:  make(map[string]chan Result),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Submit enqueues a request. It fails fast when the queue is full or the
// request carries no task ID; it never blocks on the transport.
func (c *Client) Submit(req Request) error {
	if req.TaskID == "" {
		return fmt.Errorf("submit prediction: task id is required")
	}

	c.mu.Lock()
	if _, dup := c.waiters[req.TaskID]; dup {
		c.mu.Unlock()
		return fmt.Errorf("submit prediction: task %s already in flight", req.TaskID)
	}
	ch := make(chan Result, 1)
	c.waiters[req.TaskID] = ch
	c.mu.Unlock()

	select {
	case c.requests <- req:
		return nil
	default:
		c.dropWaiter(req.TaskID)
		return fmt.Errorf("submit prediction: queue full")
	}
}

// Await blocks until the submission for taskID resolves, the configured
// timeout elapses, or ctx is done. Each submission can be awaited once.
func (c *Client) Await(ctx context.Context, taskID string) (Result, error) {
	c.mu.Lock()
	ch, ok := c.waiters[taskID]
	c.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("await prediction: no pending submission for task %s", taskID)
	}

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		c.dropWaiter(taskID)
		return res, nil
	case <-timer.C:
		c.dropWaiter(taskID)
		return Result{}, fmt.Errorf("await prediction: task %s timed out after %s", taskID, c.cfg.Timeout)
	case <-ctx.Done():
		c.dropWaiter(taskID)
		return Result{}, ctx.Err()
	}
}

// Close stops the delivery goroutine. Pending submissions resolve with a
// shutdown error.
func (c *Client) Close() {
	c.cancel()
	<-c.done
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case req := <-c.requests:
			c.deliver(req)
		case <-c.ctx.Done():
			c.failPending()
			return
		}
	}
}

func (c *Client) deliver(req Request) {
	id, err := c.pub.Publish(c.ctx, c.cfg.Topic, req)
	if err != nil {
		c.logger.Warn("prediction publish failed",
			zap.String("task_id", req.TaskID), zap.Error(err))
	}
	c.resolve(req.TaskID, Result{TaskID: req.TaskID, MessageID: id, Err: err})
}

func (c *Client) resolve(taskID string, res Result) {
	c.mu.Lock()
	ch, ok := c.waiters[taskID]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- res:
	default:
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for taskID, ch := range c.waiters {
		select {
		case ch <- Result{TaskID: taskID, Err: fmt.Errorf("prediction client closed")}:
		default:
		}
	}
}

func (c *Client) dropWaiter(taskID string) {
	c.mu.Lock()
	delete(c.waiters, taskID)
	c.mu.Unlock()
}

// FromParse builds a Request from a task and its parse output.
func FromParse(task crawl.Task, parsed crawl.ParseResult) Request {
	return Request{
		TaskID: task.ID,
		JobID:  task.JobID,
		URL:    task.URL,
		Title:  parsed.Title,
		Text:   parsed.Text,
	}
}
