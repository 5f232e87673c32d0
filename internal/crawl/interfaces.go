package crawl

import (
	"context"
	"time"
)

// Fetcher retrieves a single URL, applying politeness and protocol retries.
type Fetcher interface {
	Crawl(ctx context.Context, url string) (FetchResult, error)
}

// Parser consumes fetched content and returns structured data. The scheduler
// only cares about pass/fail.
type Parser interface {
	Parse(ctx context.Context, res FetchResult) (ParseResult, error)
}

// Store persists the combined crawl+parse record. A store failure counts
// against the owning task exactly like a fetch failure.
type Store interface {
	Save(ctx context.Context, rec Record) (StoreResult, error)
}

// Publisher pushes payloads to an external channel (Pub/Sub or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher digests page content for change detection across fetches.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
