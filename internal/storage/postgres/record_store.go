// Package postgres provides Postgres-backed persistence for crawl records.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seedline/crawld/internal/crawl"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore writes crawl records into Postgres. It implements crawl.Store.
type RecordStore struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed RecordStore using the provided config.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "crawl_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "crawl_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Save implements crawl.Store. Insert failures are reported through the
// StoreResult so the caller's retry accounting treats them like any other
// task failure.
func (s *RecordStore) Save(ctx context.Context, rec crawl.Record) (crawl.StoreResult, error) {
	if s == nil || s.pool == nil {
		return crawl.StoreResult{}, fmt.Errorf("record store is not configured")
	}
	if rec.TaskID == "" || rec.JobID == "" {
		return crawl.StoreResult{}, fmt.Errorf("record task and job ids are required")
	}

	headersJSON, err := json.Marshal(normalizeHeaders(rec.Fetch.Headers))
	if err != nil {
		return crawl.StoreResult{}, fmt.Errorf("marshal headers: %w", err)
	}
	parsedJSON, err := json.Marshal(rec.Parsed)
	if err != nil {
		return crawl.StoreResult{}, fmt.Errorf("marshal parsed payload: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	task_id,
	job_id,
	url,
	status_code,
	content_type,
	content_hash,
	headers,
	parsed,
	fetched_at,
	saved_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	args := []any{
		rec.TaskID,
		rec.JobID,
		rec.URL,
		rec.Status,
		rec.Fetch.ContentType,
		rec.ContentHash,
		headersJSON,
		parsedJSON,
		rec.Fetch.FetchedAt,
		rec.Saved,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return crawl.StoreResult{
			Success:   false,
			Timestamp: time.Now().UTC(),
			Error:     fmt.Sprintf("insert record: %v", err),
		}, nil
	}
	return crawl.StoreResult{
		ID:        rec.TaskID,
		Success:   true,
		Timestamp: time.Now().UTC(),
	}, nil
}

func normalizeHeaders(h http.Header) map[string][]string {
	if len(h) == 0 {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(h))
	for k, values := range h {
		out[k] = append([]string(nil), values...)
	}
	return out
}
