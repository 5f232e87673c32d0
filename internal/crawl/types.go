// Package crawl defines core types shared across subsystems.
package crawl

import (
	"net/http"
	"time"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values reported by the scheduler.
const (
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// TaskStatus represents the lifecycle state of a single fetch task.
type TaskStatus string

// Task status values. A retried task moves back to pending.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is the fetch-parse-store unit of work for one URL within a job.
type Task struct {
	ID         string     `json:"id"`
	JobID      string     `json:"job_id"`
	URL        string     `json:"url"`
	Priority   int        `json:"priority"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
	Status     TaskStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// Job is a batch of URL-fetch tasks sharing one lifecycle.
type Job struct {
	ID             string     `json:"id"`
	Tasks          []Task     `json:"tasks"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	Status         JobStatus  `json:"status"`
	Started        time.Time  `json:"started_at"`
	Finished       *time.Time `json:"finished_at,omitempty"`
}

// FetchResult is returned by a Fetcher for a successfully retrieved page.
type FetchResult struct {
	URL           string
	StatusCode    int
	Headers       http.Header
	Body          []byte
	FetchedAt     time.Time
	Duration      time.Duration
	ContentType   string
	ContentLength int64
	LastModified  string
}

// ParseResult is the structured output of the parse collaborator.
type ParseResult struct {
	Title string            `json:"title"`
	Links []string          `json:"links"`
	Text  string            `json:"text"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Record is the combined crawl+parse payload handed to the store collaborator.
type Record struct {
	TaskID      string      `json:"task_id"`
	JobID       string      `json:"job_id"`
	Fetch       FetchResult `json:"-"`
	URL         string      `json:"url"`
	Status      int         `json:"status"`
	ContentHash string      `json:"content_hash,omitempty"`
	Parsed      ParseResult `json:"parsed"`
	Saved       time.Time   `json:"saved_at"`
}

// StoreResult is returned by the store collaborator.
type StoreResult struct {
	ID        string    `json:"id"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}
