package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutObjectStoresAndReturnsURI(t *testing.T) {
	t.Parallel()

	s := NewBlobStore()
	uri, err := s.PutObject(context.Background(), "a/b.json", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, "memory://a/b.json", uri)

	data, ok := s.Get("a/b.json")
	require.True(t, ok)
	assert.Equal(t, "{}", string(data))
	assert.Equal(t, 1, s.Len())
}

func TestPutObjectOverwrites(t *testing.T) {
	t.Parallel()

	s := NewBlobStore()
	_, err := s.PutObject(context.Background(), "k", "", strings.NewReader("v1"))
	require.NoError(t, err)
	_, err = s.PutObject(context.Background(), "k", "", strings.NewReader("v2"))
	require.NoError(t, err)

	data, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", string(data))
}

func TestGetMissingKey(t *testing.T) {
	t.Parallel()

	s := NewBlobStore()
	_, ok := s.Get("absent")
	assert.False(t, ok)
}
