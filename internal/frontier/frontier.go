package frontier

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
)

// Config controls frontier behavior. PriorityLevels caps the usable priority
// range [0, PriorityLevels); out-of-range submissions are clamped, not
// rejected. DedupWindow expires visited markers so a URL can be re-crawled
// after the window passes; zero keeps markers forever.
type Config struct {
	MaxSize         int
	DefaultPriority int
	PriorityLevels  int
	DedupWindow     time.Duration
}

// URLFrontier is the queue of discovered-but-unfetched URLs. URLs dedup on
// their normalized key while the original string stays the queued payload.
// Safe for concurrent use.
type URLFrontier struct {
	mu      sync.Mutex
	queue   *PriorityQueue[string]
	visited map[string]time.Time
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a URLFrontier with the given bounds.
func New(cfg Config, logger *zap.Logger) *URLFrontier {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLFrontier{
		queue:   NewPriorityQueue[string](cfg.MaxSize),
		visited: make(map[string]time.Time),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Enqueue adds url at the given priority. Already-visited URLs and a full
// queue are both silent no-ops: enqueue success is never guaranteed and
// callers must not assume it. The visited marker is recorded atomically with
// the enqueue itself.
func (f *URLFrontier) Enqueue(url string, priority int) {
	f.Offer(url, priority)
}

// Offer is Enqueue with an answer: it reports whether the URL was actually
// queued, so callers that own follow-up state (the scheduler's task table)
// can react to a dropped submission instead of assuming success.
func (f *URLFrontier) Offer(url string, priority int) bool {
	key := crawl.DedupKey(url)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenLocked(key) {
		return false
	}
	if err := f.queue.Enqueue(url, f.clampPriority(priority)); err != nil {
		f.logger.Debug("frontier enqueue dropped", zap.String("url", url), zap.Error(err))
		return false
	}
	f.visited[key] = f.now()
	return true
}

// EnqueueDefault adds url at the configured default priority.
func (f *URLFrontier) EnqueueDefault(url string) {
	f.Enqueue(url, f.cfg.DefaultPriority)
}

// Requeue re-adds url bypassing the visited check, so a task retry is never
// swallowed by its own earlier visit marker. Returns QueueFullError when the
// queue is at capacity; retry callers must handle that explicitly.
func (f *URLFrontier) Requeue(url string, priority int) error {
	key := crawl.DedupKey(url)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.queue.Enqueue(url, f.clampPriority(priority)); err != nil {
		return err
	}
	f.visited[key] = f.now()
	return nil
}

// Dequeue returns the next URL by priority; ok is false when empty.
func (f *URLFrontier) Dequeue() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Dequeue()
}

// IsVisited tests membership against the normalized key. An entry older than
// the dedup window no longer counts as visited.
func (f *URLFrontier) IsVisited(url string) bool {
	key := crawl.DedupKey(url)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenLocked(key)
}

// Clear atomically empties both the queue and the visited set.
func (f *URLFrontier) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue.Clear()
	f.visited = make(map[string]time.Time)
}

// Len returns the number of queued URLs.
func (f *URLFrontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

func (f *URLFrontier) seenLocked(key string) bool {
	ts, seen := f.visited[key]
	if !seen {
		return false
	}
	if f.cfg.DedupWindow > 0 && f.now().Sub(ts) >= f.cfg.DedupWindow {
		delete(f.visited, key)
		return false
	}
	return true
}

func (f *URLFrontier) clampPriority(p int) int {
	if f.cfg.PriorityLevels <= 0 {
		return p
	}
	if p < 0 {
		return 0
	}
	if p >= f.cfg.PriorityLevels {
		return f.cfg.PriorityLevels - 1
	}
	return p
}
