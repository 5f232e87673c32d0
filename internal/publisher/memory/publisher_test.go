package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRecordsInOrder(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), "predictions", map[string]string{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)

	id, err = pub.Publish(context.Background(), "audit", "raw payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "predictions", msgs[0].Topic)
	assert.Equal(t, "audit", msgs[1].Topic)

	// Mutating the snapshot must not leak into the publisher.
	msgs[0].Topic = "changed"
	assert.Equal(t, "predictions", pub.Messages()[0].Topic)
}

func TestPublishConcurrent(t *testing.T) {
	t.Parallel()

	pub := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pub.Publish(context.Background(), "predictions", struct{}{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, pub.Messages(), 20)
}
