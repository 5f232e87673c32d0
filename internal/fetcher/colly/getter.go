// Package collygetter implements the single-attempt HTTP GET on top of the
// Colly collector. Retry and politeness live a layer up in internal/fetcher.
package collygetter

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/seedline/crawld/internal/crawl"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Getter issues one HTTP GET per call using a cloned Colly collector.
// Robots handling is disabled here; the politeness gate owns it.
type Getter struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Getter.
func New(cfg Config) *Getter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	c.WithTransport(newHTTPTransport())
	return &Getter{cfg: cfg, baseCollector: c}
}

// Get fetches url once. HTTP responses of any status code come back as a
// populated FetchResult; only transport-level failures return an error.
func (g *Getter) Get(ctx context.Context, url string) (crawl.FetchResult, error) {
	var (
		result   crawl.FetchResult
		fetchErr error
	)
	start := time.Now()

	collector := g.baseCollector.Clone()
	if g.cfg.UserAgent != "" {
		collector.UserAgent = g.cfg.UserAgent
	}
	collector.SetRequestTimeout(g.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = buildResult(r, start)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			result = buildResult(r, start)
			return
		}
		fetchErr = err
	})

	if err := g.runCollector(ctx, collector, url); err != nil {
		// Some collector errors still carry a usable HTTP response; the
		// status code is what the classification layer needs.
		if result.StatusCode > 0 {
			return result, nil
		}
		return crawl.FetchResult{}, err
	}
	if fetchErr != nil {
		return crawl.FetchResult{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	if result.StatusCode == 0 {
		return crawl.FetchResult{}, fmt.Errorf("fetch %s: no response recorded", url)
	}
	return result, nil
}

func (g *Getter) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func buildResult(r *colly.Response, start time.Time) crawl.FetchResult {
	headers := http.Header{}
	if r.Headers != nil {
		headers = r.Headers.Clone()
	}
	return crawl.FetchResult{
		URL:           r.Request.URL.String(),
		StatusCode:    r.StatusCode,
		Headers:       headers,
		Body:          append([]byte(nil), r.Body...),
		FetchedAt:     time.Now().UTC(),
		Duration:      time.Since(start),
		ContentType:   headers.Get("Content-Type"),
		ContentLength: int64(len(r.Body)),
		LastModified:  headers.Get("Last-Modified"),
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
