// Package politeness combines per-domain rate limiting and robots rules into
// the single admission gate consulted before every fetch attempt.
package politeness

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/politeness/ratelimit"
	"github.com/seedline/crawld/internal/politeness/robots"
)

// Config controls the gate.
type Config struct {
	RobotsEnforcement bool
	RateLimit         ratelimit.Config
	Robots            robots.Config
}

// Gate admits one fetch attempt at a time per the domain's token bucket and
// the origin's robots rules.
type Gate struct {
	limiter *ratelimit.Limiter
	rules   *robots.Cache
	enforce bool
	logger  *zap.Logger
}

// New builds a Gate.
func New(cfg Config, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		limiter: ratelimit.New(cfg.RateLimit),
		rules:   robots.New(cfg.Robots, logger),
		enforce: cfg.RobotsEnforcement,
		logger:  logger,
	}
}

// Admit suspends until a token is available for the URL's domain, then checks
// robots rules when enforcement is on. A disallowed URL consumes its token
// and returns PolicyViolationError. An origin's Crawl-delay, once seen, slows
// that domain's bucket for all later admissions.
func (g *Gate) Admit(ctx context.Context, rawURL string) error {
	domain := crawl.Domain(rawURL)
	if err := g.limiter.Acquire(ctx, domain); err != nil {
		return err
	}
	if !g.enforce {
		return nil
	}

	if !g.rules.IsAllowed(ctx, rawURL) {
		return &crawl.PolicyViolationError{URL: rawURL, Reason: "disallowed by robots.txt"}
	}
	g.applyCrawlDelay(ctx, rawURL, domain)
	return nil
}

// UpdateLimit adjusts a domain's request rate immediately.
func (g *Gate) UpdateLimit(domain string, rps float64) {
	g.limiter.UpdateLimit(domain, rps)
}

// CrawlDelay exposes the origin's parsed Crawl-delay for callers that report
// politeness state.
func (g *Gate) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	return g.rules.CrawlDelay(ctx, rawURL)
}

func (g *Gate) applyCrawlDelay(ctx context.Context, rawURL, domain string) {
	delay := g.rules.CrawlDelay(ctx, rawURL)
	if delay <= 0 {
		return
	}
	rps := 1 / delay.Seconds()
	if current := g.limiter.Limit(domain); rps < current {
		g.logger.Debug("applying robots crawl-delay",
			zap.String("domain", domain), zap.Duration("delay", delay))
		g.limiter.UpdateLimit(domain, rps)
	}
}
