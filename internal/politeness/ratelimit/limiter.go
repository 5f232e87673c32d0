// Package ratelimit implements the per-domain token bucket half of the
// politeness gate.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/seedline/crawld/internal/metrics"
)

// Config holds rate limiter configuration. DomainRPS entries override the
// default rate for specific domains. DefaultDelay, when set, replaces
// DefaultRPS with a fixed gap between requests to each unconfigured domain.
// MaxDomains bounds the bucket table for long multi-domain crawls;
// least-recently-used buckets are evicted beyond it.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	DefaultDelay time.Duration
	DomainRPS    map[string]float64
	MaxDomains   int
}

const defaultMaxDomains = 4096

type bucket struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

// Limiter manages per-domain token buckets. Buckets are created lazily on
// first acquisition and refill continuously; waiting suspends only the
// calling goroutine, never callers for other domains.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     Config
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.DefaultBurst <= 0 {
		cfg.DefaultBurst = 1
	}
	if cfg.MaxDomains <= 0 {
		cfg.MaxDomains = defaultMaxDomains
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
	}
}

// Acquire consumes one token for domain, suspending the caller until one is
// available or the context ends. Exhaustion of one domain's bucket never
// delays acquisitions against another domain.
func (l *Limiter) Acquire(ctx context.Context, domain string) error {
	b := l.bucket(domain)

	start := time.Now()
	if err := b.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", domain, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, waited)
	}
	return nil
}

// UpdateLimit resets the domain's bucket to the new requests-per-second
// limit, effective immediately for queued waiters as well.
func (l *Limiter) UpdateLimit(domain string, rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit := toLimit(rps)
	if b, ok := l.buckets[domain]; ok {
		b.lim.SetLimit(limit)
		b.lastUsed = time.Now()
		return
	}
	l.buckets[domain] = &bucket{
		lim:      rate.NewLimiter(limit, l.cfg.DefaultBurst),
		lastUsed: time.Now(),
	}
}

// Limit reports the effective requests-per-second limit for domain.
func (l *Limiter) Limit(domain string) float64 {
	return float64(l.bucket(domain).Limit())
}

func (l *Limiter) bucket(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[domain]
	if !ok {
		limit := toLimit(l.cfg.DefaultRPS)
		if l.cfg.DefaultDelay > 0 {
			limit = rate.Every(l.cfg.DefaultDelay)
		}
		if override, has := l.cfg.DomainRPS[domain]; has {
			limit = toLimit(override)
		}
		b = &bucket{
			lim:      rate.NewLimiter(limit, l.cfg.DefaultBurst),
			lastUsed: time.Now(),
		}
		l.buckets[domain] = b
		l.sweepLocked()
	}
	b.lastUsed = time.Now()
	return b.lim
}

// sweepLocked evicts the least-recently-used buckets once the table outgrows
// MaxDomains. Evicted domains simply start a fresh bucket on next use.
func (l *Limiter) sweepLocked() {
	for len(l.buckets) > l.cfg.MaxDomains {
		oldestKey := ""
		var oldest time.Time
		for key, b := range l.buckets {
			if oldestKey == "" || b.lastUsed.Before(oldest) {
				oldestKey = key
				oldest = b.lastUsed
			}
		}
		delete(l.buckets, oldestKey)
	}
}

func toLimit(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}
