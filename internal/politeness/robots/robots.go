// Package robots caches and evaluates robots.txt rules per origin.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/metrics"
)

const (
	defaultTTL        = time.Hour
	defaultTimeout    = 10 * time.Second
	defaultMaxOrigins = 2048
	maxRobotsBody     = 1 << 20
)

// Config controls robots fetching and caching.
type Config struct {
	UserAgent  string
	TTL        time.Duration
	Timeout    time.Duration
	MaxOrigins int
}

type entry struct {
	group      *robotstxt.Group
	crawlDelay time.Duration
	fetchedAt  time.Time
	expiresAt  time.Time
}

func (e *entry) allowed(path string) bool {
	if e.group == nil {
		return true
	}
	return e.group.Test(path)
}

// Cache lazily fetches robots.txt per origin and answers path queries using
// longest-match rule selection (robotstxt library semantics: most specific
// pattern wins, `*` matches any substring, matching anchors at path start,
// no match means allowed). Any fetch or parse failure yields a permissive
// entry cached for the normal TTL so a broken origin is not hammered.
type Cache struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// New builds a Cache.
func New(cfg Config, logger *zap.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxOrigins <= 0 {
		cfg.MaxOrigins = defaultMaxOrigins
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// IsAllowed reports whether the configured agent may fetch rawURL.
// Unparseable URLs are allowed; the fetcher will fail them on its own terms.
func (c *Cache) IsAllowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}
	e := c.load(ctx, parsed)
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return e.allowed(path)
}

// CrawlDelay returns the origin's parsed Crawl-delay, 0 when absent.
func (c *Cache) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return 0
	}
	return c.load(ctx, parsed).crawlDelay
}

func (c *Cache) load(ctx context.Context, parsed *url.URL) *entry {
	key := originKey(parsed)
	now := time.Now()

	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		if now.Before(cached.expiresAt) {
			metrics.ObserveRobotsCache("hit")
			return cached
		}
		metrics.ObserveRobotsCache("expired")
	} else {
		metrics.ObserveRobotsCache("miss")
	}

	e := c.fetch(ctx, parsed, now)
	c.mu.Lock()
	c.entries[key] = e
	c.sweepLocked()
	c.mu.Unlock()
	return e
}

func (c *Cache) fetch(ctx context.Context, parsed *url.URL, now time.Time) *entry {
	e := &entry{fetchedAt: now, expiresAt: now.Add(c.cfg.TTL)}

	data, err := c.fetchRules(ctx, parsed)
	if err != nil {
		// Fail open: a fully permissive entry, cached for the same TTL.
		metrics.ObserveRobotsCache("failopen")
		c.logger.Warn("robots fetch failed; allowing access",
			zap.String("origin", originKey(parsed)), zap.Error(err))
		return e
	}

	group := data.FindGroup(c.cfg.UserAgent)
	if group != nil {
		e.group = group
		e.crawlDelay = group.CrawlDelay
	}
	return e
}

func (c *Cache) fetchRules(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("robots status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

// sweepLocked drops expired entries, then the oldest ones if the table still
// exceeds MaxOrigins.
func (c *Cache) sweepLocked() {
	if len(c.entries) <= c.cfg.MaxOrigins {
		return
	}
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	for len(c.entries) > c.cfg.MaxOrigins {
		oldestKey := ""
		var oldest time.Time
		for key, e := range c.entries {
			if oldestKey == "" || e.fetchedAt.Before(oldest) {
				oldestKey = key
				oldest = e.fetchedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

func originKey(parsed *url.URL) string {
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
}
