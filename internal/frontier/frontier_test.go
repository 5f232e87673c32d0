package frontier

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedline/crawld/internal/crawl"
)

func TestFrontierDeduplicatesNormalizedForms(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 10}, nil)
	f.EnqueueDefault("https://x.com/a/")
	f.EnqueueDefault("https://x.com/a")

	assert.Equal(t, 1, f.Len())
	url, ok := f.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "https://x.com/a/", url, "original string is the payload")
	assert.True(t, f.IsVisited("https://x.com/a"))
}

func TestFrontierMalformedURLsDedupByLiteral(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 10}, nil)
	f.EnqueueDefault("http://[::1]:namedport")
	f.EnqueueDefault("http://[::1]:namedport")
	assert.Equal(t, 1, f.Len())

	// A structurally different malformed string is its own entry.
	f.EnqueueDefault("http://[::1]:otherport")
	assert.Equal(t, 2, f.Len())
}

func TestFrontierFullIsSilentNoOp(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 2}, nil)
	for i := 0; i < 5; i++ {
		f.EnqueueDefault(fmt.Sprintf("https://x.com/%d", i))
	}
	assert.Equal(t, 2, f.Len())

	// Dropped URLs were never marked visited, so they can come back later.
	assert.False(t, f.IsVisited("https://x.com/4"))
	f.Dequeue()
	f.EnqueueDefault("https://x.com/4")
	assert.True(t, f.IsVisited("https://x.com/4"))
}

func TestFrontierPriorityOrder(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 10}, nil)
	f.Enqueue("https://x.com/low", 9)
	f.Enqueue("https://x.com/high", 1)
	f.Enqueue("https://x.com/mid", 5)

	for _, want := range []string{"https://x.com/high", "https://x.com/mid", "https://x.com/low"} {
		got, ok := f.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestFrontierRequeueBypassesVisited(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 10}, nil)
	f.EnqueueDefault("https://x.com/a")
	_, ok := f.Dequeue()
	require.True(t, ok)

	// A retried task's URL is already marked visited; plain Enqueue drops it.
	f.EnqueueDefault("https://x.com/a")
	assert.Equal(t, 0, f.Len())

	require.NoError(t, f.Requeue("https://x.com/a", 3))
	assert.Equal(t, 1, f.Len())
}

func TestFrontierRequeueSurfacesQueueFull(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 1}, nil)
	f.EnqueueDefault("https://x.com/a")

	err := f.Requeue("https://x.com/b", 1)
	var full *crawl.QueueFullError
	require.ErrorAs(t, err, &full)
}

func TestFrontierClear(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 10}, nil)
	f.EnqueueDefault("https://x.com/a")
	f.Clear()

	assert.Equal(t, 0, f.Len())
	assert.False(t, f.IsVisited("https://x.com/a"))
	f.EnqueueDefault("https://x.com/a")
	assert.Equal(t, 1, f.Len())
}

func TestFrontierClampsPriorityToConfiguredLevels(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 10, PriorityLevels: 3}, nil)
	require.True(t, f.Offer("https://x.com/high", -5))
	require.True(t, f.Offer("https://x.com/low", 99))
	require.True(t, f.Offer("https://x.com/mid", 1))

	// -5 clamps to 0, 99 clamps to 2, so order is high, mid, low.
	for _, want := range []string{"https://x.com/high", "https://x.com/mid", "https://x.com/low"} {
		url, ok := f.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, url)
	}
}

func TestFrontierDedupWindowExpiresVisits(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 10, DedupWindow: time.Minute}, nil)
	current := time.Unix(1700000000, 0)
	f.now = func() time.Time { return current }

	require.True(t, f.Offer("https://x.com/a", 1))
	assert.False(t, f.Offer("https://x.com/a", 1), "inside the window the URL stays deduplicated")
	assert.True(t, f.IsVisited("https://x.com/a"))

	current = current.Add(2 * time.Minute)
	assert.False(t, f.IsVisited("https://x.com/a"), "the visit marker expires with the window")
	assert.True(t, f.Offer("https://x.com/a", 1), "an expired URL is eligible again")
	assert.Equal(t, 2, f.Len())
}

func TestFrontierZeroWindowRemembersForever(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxSize: 10}, nil)
	current := time.Unix(1700000000, 0)
	f.now = func() time.Time { return current }

	require.True(t, f.Offer("https://x.com/a", 1))
	current = current.Add(365 * 24 * time.Hour)
	assert.True(t, f.IsVisited("https://x.com/a"))
	assert.False(t, f.Offer("https://x.com/a", 1))
}
