// Package storage persists crawl records. Backends split in two layers: blob
// stores that write bytes to a destination (memory, local filesystem, GCS)
// and record stores that implement crawl.Store on top of them or directly
// against a database.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
)

// BlobStore is the common interface for byte-destination backends.
type BlobStore interface {
	// PutObject persists the content under path and returns a URI.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RecordStoreConfig parameterizes a blob-backed record store.
type RecordStoreConfig struct {
	Prefix      string
	ContentType string
}

// RecordStore implements crawl.Store by marshaling records to JSON and
// handing them to a BlobStore.
type RecordStore struct {
	blobs  BlobStore
	cfg    RecordStoreConfig
	logger *zap.Logger
}

// NewRecordStore builds a RecordStore over the given blob backend.
func NewRecordStore(blobs BlobStore, cfg RecordStoreConfig, logger *zap.Logger) (*RecordStore, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "records"
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{blobs: blobs, cfg: cfg, logger: logger}, nil
}

// Save implements crawl.Store. A backend failure is reported through the
// StoreResult rather than the error so the caller's retry accounting sees it
// like any other task failure.
func (s *RecordStore) Save(ctx context.Context, rec crawl.Record) (crawl.StoreResult, error) {
	if rec.TaskID == "" || rec.JobID == "" {
		return crawl.StoreResult{}, fmt.Errorf("record task and job ids are required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return crawl.StoreResult{}, fmt.Errorf("marshal record: %w", err)
	}

	path := fmt.Sprintf("%s/%s/%s.json", s.cfg.Prefix, rec.JobID, rec.TaskID)
	uri, err := s.blobs.PutObject(ctx, path, s.cfg.ContentType, bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn("record save failed",
			zap.String("task_id", rec.TaskID), zap.Error(err))
		return crawl.StoreResult{
			Success:   false,
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		}, nil
	}
	return crawl.StoreResult{
		ID:        uri,
		Success:   true,
		Timestamp: time.Now().UTC(),
	}, nil
}
