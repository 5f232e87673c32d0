package fetcher

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedline/crawld/internal/crawl"
)

type stubGate struct {
	calls int
	err   error
}

func (g *stubGate) Admit(context.Context, string) error {
	g.calls++
	return g.err
}

type scriptedGetter struct {
	calls   int
	results []crawl.FetchResult
	errs    []error
}

func (s *scriptedGetter) Get(context.Context, string) (crawl.FetchResult, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], s.errs[i]
}

func newFetcher(gate *stubGate, getter *scriptedGetter, retries int) *Fetcher {
	return New(gate, getter, Config{RetryAttempts: retries, RetryDelay: time.Millisecond}, nil)
}

func TestCrawlSuccess(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	getter := &scriptedGetter{
		results: []crawl.FetchResult{{URL: "https://a.test", StatusCode: 200, Body: []byte("ok")}},
		errs:    []error{nil},
	}
	res, err := newFetcher(gate, getter, 3).Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, 1, getter.calls)
}

func TestCrawlRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	getter := &scriptedGetter{
		results: []crawl.FetchResult{{}, {StatusCode: 200}},
		errs:    []error{syscall.ECONNRESET, nil},
	}
	res, err := newFetcher(gate, getter, 3).Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, 2, getter.calls, "reset once then 200 takes exactly 2 attempts")
}

// clientTimeoutErr mimics the error shape net/http produces when
// Client.Timeout fires: a net.Error timeout that also matches the
// context deadline sentinel.
type clientTimeoutErr struct{}

func (clientTimeoutErr) Error() string   { return "Client.Timeout exceeded while awaiting headers" }
func (clientTimeoutErr) Timeout() bool   { return true }
func (clientTimeoutErr) Temporary() bool { return true }
func (clientTimeoutErr) Is(target error) bool {
	return target == context.DeadlineExceeded
}

func TestCrawlRetriesRequestTimeout(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	getter := &scriptedGetter{
		results: []crawl.FetchResult{{}, {StatusCode: 200}},
		errs:    []error{clientTimeoutErr{}, nil},
	}
	res, err := newFetcher(gate, getter, 3).Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, 2, getter.calls, "one slow response costs one retry, not the task")
}

func TestCrawlClientErrorIsFinal(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	getter := &scriptedGetter{
		results: []crawl.FetchResult{{StatusCode: 404}},
		errs:    []error{nil},
	}
	_, err := newFetcher(gate, getter, 3).Crawl(context.Background(), "https://a.test")

	var clientErr *crawl.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, 404, clientErr.StatusCode)
	assert.Equal(t, 1, getter.calls, "4xx fails after exactly 1 attempt")
}

func TestCrawlServerErrorExhaustsRetries(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	getter := &scriptedGetter{
		results: []crawl.FetchResult{{StatusCode: 503}},
		errs:    []error{nil},
	}
	_, err := newFetcher(gate, getter, 2).Crawl(context.Background(), "https://a.test")

	var transient *crawl.TransientNetworkError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 503, transient.StatusCode)
	assert.Equal(t, 3, getter.calls, "initial attempt plus 2 retries")
}

func TestCrawlPolicyViolationSkipsFetch(t *testing.T) {
	t.Parallel()

	gate := &stubGate{err: &crawl.PolicyViolationError{URL: "https://a.test", Reason: "robots"}}
	getter := &scriptedGetter{results: []crawl.FetchResult{{}}, errs: []error{nil}}
	_, err := newFetcher(gate, getter, 3).Crawl(context.Background(), "https://a.test")

	var policy *crawl.PolicyViolationError
	require.ErrorAs(t, err, &policy)
	assert.Equal(t, 0, getter.calls)
	assert.Equal(t, 1, gate.calls)
}

func TestCrawlReentersGateOnEveryAttempt(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	getter := &scriptedGetter{
		results: []crawl.FetchResult{{StatusCode: 500}, {StatusCode: 500}, {StatusCode: 200}},
		errs:    []error{nil, nil, nil},
	}
	_, err := newFetcher(gate, getter, 3).Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)
	assert.Equal(t, 3, getter.calls)
	assert.Equal(t, 3, gate.calls, "rate limit and robots re-checked per attempt")
}

func TestCrawlContextCancelDuringBackoff(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	getter := &scriptedGetter{
		results: []crawl.FetchResult{{StatusCode: 500}},
		errs:    []error{nil},
	}
	f := New(gate, getter, Config{RetryAttempts: 5, RetryDelay: time.Minute}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Crawl(ctx, "https://a.test")
	require.Error(t, err)
	assert.Equal(t, 1, getter.calls)
}

func TestBackoffCurve(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, backoff(base, 0))
	assert.Equal(t, 200*time.Millisecond, backoff(base, 1))
	assert.Equal(t, 400*time.Millisecond, backoff(base, 2))
	assert.Equal(t, maxBackoff, backoff(base, 20), "capped at 30s")
}
