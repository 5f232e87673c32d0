package frontier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedline/crawld/internal/crawl"
)

func TestPriorityQueueOrdering(t *testing.T) {
	t.Parallel()

	q := NewPriorityQueue[string](10)
	require.NoError(t, q.Enqueue("three", 3))
	require.NoError(t, q.Enqueue("one", 1))
	require.NoError(t, q.Enqueue("two", 2))

	for _, want := range []string{"one", "two", "three"} {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestPriorityQueueStableForEqualPriorities(t *testing.T) {
	t.Parallel()

	q := NewPriorityQueue[string](10)
	require.NoError(t, q.Enqueue("first", 5))
	require.NoError(t, q.Enqueue("second", 5))
	require.NoError(t, q.Enqueue("third", 5))

	for _, want := range []string{"first", "second", "third"} {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestPriorityQueueCapacity(t *testing.T) {
	t.Parallel()

	q := NewPriorityQueue[int](2)
	require.NoError(t, q.Enqueue(1, 1))
	require.NoError(t, q.Enqueue(2, 2))

	err := q.Enqueue(3, 3)
	var full *crawl.QueueFullError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 2, full.Capacity)
	assert.Equal(t, 2, q.Len())

	// Over-enqueue repeatedly; size must never exceed capacity.
	for i := 0; i < 20; i++ {
		_ = q.Enqueue(i, i)
		assert.LessOrEqual(t, q.Len(), 2)
	}
}

func TestPriorityQueuePeekAndClear(t *testing.T) {
	t.Parallel()

	q := NewPriorityQueue[string](4)
	_, ok := q.Peek()
	assert.False(t, ok)

	require.NoError(t, q.Enqueue("b", 2))
	require.NoError(t, q.Enqueue("a", 1))

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", head)
	assert.Equal(t, 2, q.Len(), "peek must not remove")

	q.Clear()
	assert.Equal(t, 0, q.Len())
	_, ok = q.Dequeue()
	assert.False(t, ok)
}
