package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/storage/memory"
)

type failingBlobStore struct{}

func (failingBlobStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket unreachable")
}

func TestRecordStoreSavesJSON(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	store, err := NewRecordStore(blobs, RecordStoreConfig{Prefix: "records"}, nil)
	require.NoError(t, err)

	rec := crawl.Record{
		TaskID: "task-1",
		JobID:  "job-1",
		URL:    "https://example.com",
		Status: 200,
		Parsed: crawl.ParseResult{Title: "Example"},
		Saved:  time.Unix(1700000000, 0).UTC(),
	}
	res, err := store.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "memory://records/job-1/task-1.json", res.ID)

	data, ok := blobs.Get("records/job-1/task-1.json")
	require.True(t, ok)
	var got crawl.Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec.URL, got.URL)
	assert.Equal(t, "Example", got.Parsed.Title)
}

func TestRecordStoreReportsBackendFailureInResult(t *testing.T) {
	t.Parallel()

	store, err := NewRecordStore(failingBlobStore{}, RecordStoreConfig{}, nil)
	require.NoError(t, err)

	res, err := store.Save(context.Background(), crawl.Record{TaskID: "t", JobID: "j"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "bucket unreachable")
}

func TestRecordStoreRequiresIdentifiers(t *testing.T) {
	t.Parallel()

	store, err := NewRecordStore(memory.NewBlobStore(), RecordStoreConfig{}, nil)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), crawl.Record{})
	assert.Error(t, err)
}

func TestNewRecordStoreRequiresBackend(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStore(nil, RecordStoreConfig{}, nil)
	assert.Error(t, err)
}
