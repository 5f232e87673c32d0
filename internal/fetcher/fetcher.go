// Package fetcher implements the fetch state machine: politeness admission,
// a single HTTP attempt, outcome classification, and bounded retry with
// exponential backoff.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/metrics"
)

const maxBackoff = 30 * time.Second

// Gate admits one fetch attempt, combining rate limiting and robots rules.
type Gate interface {
	Admit(ctx context.Context, url string) error
}

// Getter performs one HTTP GET. Transport failures return an error; any HTTP
// response, whatever the status, returns a populated result.
type Getter interface {
	Get(ctx context.Context, url string) (crawl.FetchResult, error)
}

// Config controls retry behavior.
type Config struct {
	RetryAttempts int
	RetryDelay    time.Duration
}

// Fetcher drives the attempt loop. Every attempt, including retries,
// re-enters the full admission sequence, so backoff never outruns the
// domain's rate limit or a robots change.
type Fetcher struct {
	gate   Gate
	getter Getter
	cfg    Config
	logger *zap.Logger
}

// New builds a Fetcher.
func New(gate Gate, getter Getter, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{gate: gate, getter: getter, cfg: cfg, logger: logger}
}

// Crawl fetches url, retrying transient failures up to the configured attempt
// count. The loop is explicit and bounded; after exhaustion the last observed
// error is surfaced.
func (f *Fetcher) Crawl(ctx context.Context, url string) (crawl.FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, backoff(f.cfg.RetryDelay, attempt-1)); err != nil {
				return crawl.FetchResult{}, err
			}
			f.logger.Debug("retrying fetch", zap.String("url", url), zap.Int("attempt", attempt))
		}

		if err := f.gate.Admit(ctx, url); err != nil {
			// Policy violations and context failures are final; neither
			// earns another attempt.
			metrics.ObserveFetchAttempt("policy")
			return crawl.FetchResult{}, err
		}

		res, err := f.attempt(ctx, url)
		if err == nil {
			metrics.ObserveFetchAttempt("success")
			metrics.ObserveFetchBytes(crawl.Domain(url), len(res.Body))
			return res, nil
		}
		if !crawl.Retryable(err) {
			metrics.ObserveFetchAttempt("client_error")
			return crawl.FetchResult{}, err
		}
		metrics.ObserveFetchAttempt("transient")
		lastErr = err
	}
	return crawl.FetchResult{}, fmt.Errorf("fetch %s: retries exhausted: %w", url, lastErr)
}

// attempt runs one GET and classifies the outcome.
func (f *Fetcher) attempt(ctx context.Context, url string) (crawl.FetchResult, error) {
	res, err := f.getter.Get(ctx, url)
	if err != nil {
		if crawl.TransportRetryable(ctx, err) {
			return crawl.FetchResult{}, &crawl.TransientNetworkError{URL: url, Err: err}
		}
		return crawl.FetchResult{}, err
	}

	switch {
	case res.StatusCode >= 500:
		return crawl.FetchResult{}, &crawl.TransientNetworkError{URL: url, StatusCode: res.StatusCode}
	case res.StatusCode >= 400:
		return crawl.FetchResult{}, &crawl.ClientError{URL: url, StatusCode: res.StatusCode}
	default:
		return res, nil
	}
}

// backoff computes min(base * 2^attempt, 30s).
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
