package politeness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/politeness/ratelimit"
	"github.com/seedline/crawld/internal/politeness/robots"
)

func gateServer(t *testing.T, robotsBody string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte(robotsBody))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAdmitDisallowedByRobots(t *testing.T) {
	t.Parallel()

	srv := gateServer(t, "User-agent: *\nDisallow: /private\n")
	g := New(Config{
		RobotsEnforcement: true,
		RateLimit:         ratelimit.Config{DefaultRPS: 100, DefaultBurst: 1},
		Robots:            robots.Config{UserAgent: "crawld-test"},
	}, nil)

	err := g.Admit(context.Background(), srv.URL+"/private/x")
	var policy *crawl.PolicyViolationError
	require.ErrorAs(t, err, &policy)

	require.NoError(t, g.Admit(context.Background(), srv.URL+"/public"))
}

func TestAdmitEnforcementDisabled(t *testing.T) {
	t.Parallel()

	// No robots server at all: with enforcement off nothing is fetched.
	g := New(Config{
		RobotsEnforcement: false,
		RateLimit:         ratelimit.Config{DefaultRPS: 100, DefaultBurst: 1},
	}, nil)
	require.NoError(t, g.Admit(context.Background(), "https://nowhere.invalid/x"))
}

func TestAdmitAppliesCrawlDelay(t *testing.T) {
	t.Parallel()

	srv := gateServer(t, "User-agent: *\nCrawl-delay: 1\n")
	g := New(Config{
		RobotsEnforcement: true,
		RateLimit:         ratelimit.Config{DefaultRPS: 100, DefaultBurst: 1},
		Robots:            robots.Config{UserAgent: "crawld-test"},
	}, nil)
	ctx := context.Background()

	require.NoError(t, g.Admit(ctx, srv.URL+"/a"))

	// The first admission saw Crawl-delay: 1, so the second must wait.
	start := time.Now()
	require.NoError(t, g.Admit(ctx, srv.URL+"/b"))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestAdmitRateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	g := New(Config{
		RateLimit: ratelimit.Config{DefaultRPS: 0.1, DefaultBurst: 1},
	}, nil)
	ctx := context.Background()
	require.NoError(t, g.Admit(ctx, "https://a.test/1"))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, g.Admit(short, "https://a.test/2"))
}
