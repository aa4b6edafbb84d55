package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document describes an ingested source document (usually a PDF) whose
// chunks feed the vector index. Status is "pending" until the ingest
// worker has embedded all chunks, then "indexed" (or "failed").
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Pages     int       `json:"pages"`
	Chunks    int       `json:"chunks"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is a unit of background work in the SQLite job queue.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
